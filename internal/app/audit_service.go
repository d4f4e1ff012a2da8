package app

import (
	"context"
	"fmt"

	corescope "github.com/example/procure/internal/core/scope"
	corestage "github.com/example/procure/internal/core/stage"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

// AuditServiceImpl implements the AuditService interface.
type AuditServiceImpl struct {
	requestRepo    secondary.RequestRepository
	transitionRepo secondary.TransitionRepository
	scopes         authorizer
}

// NewAuditService creates a new AuditService with injected dependencies.
func NewAuditService(
	requestRepo secondary.RequestRepository,
	transitionRepo secondary.TransitionRepository,
	scopes *ScopeServiceImpl,
) *AuditServiceImpl {
	return &AuditServiceImpl{
		requestRepo:    requestRepo,
		transitionRepo: transitionRepo,
		scopes:         scopes,
	}
}

// Timeline returns the transitions of a request, oldest first.
func (s *AuditServiceImpl) Timeline(ctx context.Context, actorID, requestID string) ([]*primary.Transition, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if err := s.scopes.authorize(ctx, actorID, record.FacilityID, record.OwnerID, corescope.ActionView); err != nil {
		return nil, err
	}

	records, err := s.transitionRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	out := make([]*primary.Transition, len(records))
	for i, r := range records {
		out[i] = recordToTransition(r)
	}
	return out, nil
}

// Verify checks the ledger of a request for continuity.
func (s *AuditServiceImpl) Verify(ctx context.Context, requestID string) (*primary.ChainReport, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	records, err := s.transitionRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	report := &primary.ChainReport{
		RequestID:    requestID,
		CurrentStage: record.CurrentStage,
		Transitions:  len(records),
		Problems:     checkChain(record.CurrentStage, records),
	}
	report.Intact = len(report.Problems) == 0
	return report, nil
}

// checkChain returns every break in the ledger: the chain must start at the
// initial stage, each from_stage must equal the previous to_stage, every edge
// must be legal, and the last to_stage must be the current stage.
func checkChain(currentStage string, records []*secondary.TransitionRecord) []string {
	var problems []string
	expected := string(corestage.InitialStage())

	for i, r := range records {
		if r.FromStage != expected {
			problems = append(problems, fmt.Sprintf("transition %d starts at %s, expected %s", i+1, r.FromStage, expected))
		}
		if _, ok := corestage.ActionFor(corestage.Stage(r.FromStage), corestage.Stage(r.ToStage)); !ok {
			problems = append(problems, fmt.Sprintf("transition %d is not a legal edge: %s -> %s", i+1, r.FromStage, r.ToStage))
		}
		expected = r.ToStage
	}

	if expected != currentStage {
		problems = append(problems, fmt.Sprintf("ledger ends at %s but request is in %s", expected, currentStage))
	}
	return problems
}

var _ primary.AuditService = (*AuditServiceImpl)(nil)
