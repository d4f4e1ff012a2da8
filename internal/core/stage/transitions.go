// Package stage contains the pure business logic for the procurement request
// lifecycle. This is part of the Functional Core - no I/O, only pure functions.
package stage

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/procure/internal/core/scope"
)

// Stage represents a request's position in its approval lifecycle.
type Stage string

const (
	StageDraft         Stage = "draft"
	StageSubmitted     Stage = "submitted"
	StageApproved      Stage = "approved"
	StageInProcurement Stage = "in_procurement"
	StageCompleted     Stage = "completed"
	StageCancelled     Stage = "cancelled"
	StageReturned      Stage = "returned"
)

// Status is the coarse state derived from the stage.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

var knownStages = map[Stage]bool{
	StageDraft:         true,
	StageSubmitted:     true,
	StageApproved:      true,
	StageInProcurement: true,
	StageCompleted:     true,
	StageCancelled:     true,
	StageReturned:      true,
}

// ParseStage validates a persisted stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !knownStages[st] {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no transition leaves the stage.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// IsEditable reports whether request items may change in this stage.
func (s Stage) IsEditable() bool {
	return s == StageDraft || s == StageReturned
}

// Status returns the status that accompanies the stage.
func (s Stage) Status() Status {
	if s.IsTerminal() {
		return StatusClosed
	}
	return StatusActive
}

type edge struct {
	from Stage
	to   Stage
}

// table is the fixed transition table. Each edge names the action that
// authorizes it.
var table = map[edge]scope.Action{
	{StageDraft, StageSubmitted}:         scope.ActionSubmit,
	{StageReturned, StageSubmitted}:      scope.ActionSubmit,
	{StageReturned, StageDraft}:          scope.ActionReopen,
	{StageSubmitted, StageApproved}:      scope.ActionApprove,
	{StageSubmitted, StageReturned}:      scope.ActionReturn,
	{StageApproved, StageReturned}:       scope.ActionReturn,
	{StageApproved, StageInProcurement}:  scope.ActionProcure,
	{StageInProcurement, StageCompleted}: scope.ActionComplete,
	{StageInProcurement, StageCancelled}: scope.ActionCancel,
}

// ActionFor returns the action authorizing from -> to, or false when the
// edge is not in the table.
func ActionFor(from, to Stage) (scope.Action, bool) {
	a, ok := table[edge{from, to}]
	return a, ok
}

// Successors lists the legal next stages of from, sorted by name.
func Successors(from Stage) []Stage {
	var out []Stage
	for e := range table {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InitialStage returns the stage every new request is born in.
func InitialStage() Stage {
	return StageDraft
}

// TransitionResult captures the new stage plus its side effects.
type TransitionResult struct {
	NewStage  Stage
	NewStatus Status
	ClosedAt  *time.Time // Set when the new stage is terminal
}

// ApplyTransition computes the outcome of moving into newStage.
// The caller passes the current time to enable testing.
func ApplyTransition(newStage Stage, now time.Time) TransitionResult {
	result := TransitionResult{
		NewStage:  newStage,
		NewStatus: newStage.Status(),
	}
	if newStage.IsTerminal() {
		result.ClosedAt = &now
	}
	return result
}
