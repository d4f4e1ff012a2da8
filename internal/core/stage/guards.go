package stage

import (
	"fmt"
	"strings"

	"github.com/example/procure/internal/core/scope"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// TransitionContext provides context for transition preconditions that are
// independent of who is acting.
type TransitionContext struct {
	RequestID string
	Action    scope.Action
	Comment   string
	ItemCount int
}

// CanApplyTransition evaluates request-level preconditions of a legal edge.
// Rules:
// - Returning a request requires a comment explaining why
// - Submitting requires at least one item
func CanApplyTransition(ctx TransitionContext) GuardResult {
	switch ctx.Action {
	case scope.ActionReturn:
		if strings.TrimSpace(ctx.Comment) == "" {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("returning request %s requires a comment", ctx.RequestID),
			}
		}
	case scope.ActionSubmit:
		if ctx.ItemCount == 0 {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("cannot submit request %s without items", ctx.RequestID),
			}
		}
	}
	return GuardResult{Allowed: true}
}

// EditContext provides context for item mutation guards.
type EditContext struct {
	RequestID string
	Stage     Stage
}

// CanEditItems evaluates whether items of a request may change.
// Rule: items are frozen outside draft and returned.
func CanEditItems(ctx EditContext) GuardResult {
	if !ctx.Stage.IsEditable() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("items of request %s are frozen in stage %s", ctx.RequestID, ctx.Stage),
		}
	}
	return GuardResult{Allowed: true}
}
