package primary

import "context"

// StageService defines the primary port for moving requests through their
// lifecycle.
type StageService interface {
	// Transition moves a request to ToStage. The expected current stage is
	// taken from the snapshot the caller holds; if another actor moved the
	// request first a StaleStageError is returned.
	Transition(ctx context.Context, req TransitionRequest) (*TransitionResponse, error)

	// Submit moves a draft or returned request to submitted.
	Submit(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Approve moves a submitted request to approved.
	Approve(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Return sends a submitted or approved request back for rework.
	Return(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Reopen moves a returned request back to draft.
	Reopen(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Procure moves an approved request into procurement.
	Procure(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Complete closes a request in procurement as completed.
	Complete(ctx context.Context, req ActionRequest) (*TransitionResponse, error)

	// Cancel closes a request in procurement as cancelled.
	Cancel(ctx context.Context, req ActionRequest) (*TransitionResponse, error)
}

// TransitionRequest contains parameters for a stage transition.
// When Snapshot is nil the request is read by RequestID at call time.
type TransitionRequest struct {
	ActorID       string
	RequestID     string
	Snapshot      *Request
	ToStage       string
	Decision      string
	Comment       string
	AttachmentRef string
}

// ActionRequest contains parameters for the named transition wrappers.
type ActionRequest struct {
	ActorID       string
	RequestID     string
	Snapshot      *Request
	Decision      string
	Comment       string
	AttachmentRef string
}

// TransitionResponse contains the result of an accepted transition.
type TransitionResponse struct {
	Request    *Request
	Transition *Transition
}

// Transition represents one audit trail entry at the port boundary.
type Transition struct {
	ID            string
	RequestID     string
	Sequence      int64
	FromStage     string
	ToStage       string
	Action        string
	ActorID       string
	Decision      string
	Comment       string
	AttachmentRef string
	CreatedAt     string
}
