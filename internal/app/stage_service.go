package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	corescope "github.com/example/procure/internal/core/scope"
	corestage "github.com/example/procure/internal/core/stage"
	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

// StageServiceImpl implements the StageService interface.
type StageServiceImpl struct {
	requestRepo secondary.RequestRepository
	scopes      authorizer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStageService creates a new StageService with injected dependencies.
func NewStageService(
	requestRepo secondary.RequestRepository,
	scopes *ScopeServiceImpl,
	logger zerolog.Logger,
) *StageServiceImpl {
	return &StageServiceImpl{
		requestRepo: requestRepo,
		scopes:      scopes,
		logger:      logger,
		now:         time.Now,
	}
}

// Transition moves a request to a new stage.
func (s *StageServiceImpl) Transition(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error) {
	// 1. Establish the stage read at transition start. Facility and owner
	// always come from the stored request; a snapshot only pins the stage.
	requestID := req.RequestID
	if req.Snapshot != nil && req.Snapshot.ID != "" {
		requestID = req.Snapshot.ID
	}
	stored, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	snapshot := recordToRequest(stored, nil)
	if req.Snapshot != nil {
		snapshot.Stage = req.Snapshot.Stage
	}
	from, err := corestage.ParseStage(snapshot.Stage)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", snapshot.ID, err)
	}
	to := corestage.Stage(req.ToStage)

	// 2. The edge must be in the table
	action, ok := corestage.ActionFor(from, to)
	if !ok {
		return nil, &errs.IllegalTransitionError{From: string(from), To: req.ToStage}
	}

	// 3. The actor must be allowed to take the edge's action
	if err := s.scopes.authorize(ctx, req.ActorID, snapshot.FacilityID, snapshot.OwnerID, action); err != nil {
		return nil, err
	}

	// 4. Edge preconditions
	itemCount := 0
	if action == corescope.ActionSubmit {
		items, err := s.requestRepo.GetItems(ctx, snapshot.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load items: %w", err)
		}
		itemCount = len(items)
	}
	guard := corestage.CanApplyTransition(corestage.TransitionContext{
		RequestID: snapshot.ID,
		Action:    action,
		Comment:   req.Comment,
		ItemCount: itemCount,
	})
	if !guard.Allowed {
		return nil, &errs.ValidationError{Reason: guard.Reason}
	}

	// 5. Compare-and-swap plus ledger append
	now := s.now().UTC()
	result := corestage.ApplyTransition(to, now)
	decision := req.Decision
	if decision == "" {
		decision = string(to)
	}
	transition := &secondary.TransitionRecord{
		ID:            uuid.NewString(),
		RequestID:     snapshot.ID,
		FromStage:     string(from),
		ToStage:       string(to),
		Action:        string(action),
		ActorID:       req.ActorID,
		Decision:      decision,
		Comment:       req.Comment,
		AttachmentRef: req.AttachmentRef,
		CreatedAt:     now.Format(time.RFC3339Nano),
	}
	change := secondary.StageChange{
		RequestID:     snapshot.ID,
		ExpectedStage: string(from),
		NewStage:      string(result.NewStage),
		NewStatus:     string(result.NewStatus),
		Transition:    transition,
	}
	if result.ClosedAt != nil {
		change.ClosedAt = result.ClosedAt.Format(time.RFC3339Nano)
	}

	if err := s.requestRepo.TransitionStage(ctx, change); err != nil {
		s.logger.Warn().
			Err(err).
			Str("request_id", snapshot.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Str("actor_id", req.ActorID).
			Msg("transition rejected")
		return nil, fmt.Errorf("failed to transition request %s: %w", snapshot.ID, err)
	}

	s.logger.Info().
		Str("request_id", snapshot.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("action", string(action)).
		Str("actor_id", req.ActorID).
		Msg("request transitioned")

	record, err := s.requestRepo.GetByID(ctx, snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}
	return &primary.TransitionResponse{
		Request:    recordToRequest(record, nil),
		Transition: recordToTransition(transition),
	}, nil
}

// Submit moves a draft or returned request to submitted.
func (s *StageServiceImpl) Submit(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageSubmitted))
}

// Approve moves a submitted request to approved.
func (s *StageServiceImpl) Approve(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageApproved))
}

// Return sends a request back to its owner.
func (s *StageServiceImpl) Return(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageReturned))
}

// Reopen moves a returned request back to draft.
func (s *StageServiceImpl) Reopen(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageDraft))
}

// Procure moves an approved request into procurement.
func (s *StageServiceImpl) Procure(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageInProcurement))
}

// Complete closes a request as completed.
func (s *StageServiceImpl) Complete(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageCompleted))
}

// Cancel closes a request as cancelled.
func (s *StageServiceImpl) Cancel(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return s.Transition(ctx, toTransition(req, corestage.StageCancelled))
}

func toTransition(req primary.ActionRequest, to corestage.Stage) primary.TransitionRequest {
	return primary.TransitionRequest{
		ActorID:       req.ActorID,
		RequestID:     req.RequestID,
		Snapshot:      req.Snapshot,
		ToStage:       string(to),
		Decision:      req.Decision,
		Comment:       req.Comment,
		AttachmentRef: req.AttachmentRef,
	}
}

func recordToTransition(r *secondary.TransitionRecord) *primary.Transition {
	return &primary.Transition{
		ID:            r.ID,
		RequestID:     r.RequestID,
		Sequence:      r.Sequence,
		FromStage:     r.FromStage,
		ToStage:       r.ToStage,
		Action:        r.Action,
		ActorID:       r.ActorID,
		Decision:      r.Decision,
		Comment:       r.Comment,
		AttachmentRef: r.AttachmentRef,
		CreatedAt:     r.CreatedAt,
	}
}

var _ primary.StageService = (*StageServiceImpl)(nil)
