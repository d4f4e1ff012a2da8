package cli

import (
	"context"
	"errors"

	"github.com/example/procure/internal/ports/primary"
)

// mockRequestService implements primary.RequestService for testing
type mockRequestService struct {
	createDraftFn  func(ctx context.Context, req primary.CreateDraftRequest) (*primary.CreateDraftResponse, error)
	addOverrideFn  func(ctx context.Context, req primary.AddOverrideRequest) (*primary.Request, error)
	getRequestFn   func(ctx context.Context, actorID, requestID string) (*primary.Request, error)
	reconcileFn    func(ctx context.Context, actorID, requestID string) (*primary.ReconcileResult, error)
	reconcileAllFn func(ctx context.Context, actorID string) ([]*primary.ReconcileResult, error)

	// Track calls for verification
	lastCreateReq   primary.CreateDraftRequest
	lastOverrideReq primary.AddOverrideRequest
	overrideCalls   int
}

func (m *mockRequestService) CreateDraft(ctx context.Context, req primary.CreateDraftRequest) (*primary.CreateDraftResponse, error) {
	m.lastCreateReq = req
	if m.createDraftFn != nil {
		return m.createDraftFn(ctx, req)
	}
	return nil, errors.New("not configured")
}

func (m *mockRequestService) AddOverride(ctx context.Context, req primary.AddOverrideRequest) (*primary.Request, error) {
	m.lastOverrideReq = req
	m.overrideCalls++
	if m.addOverrideFn != nil {
		return m.addOverrideFn(ctx, req)
	}
	return nil, errors.New("not configured")
}

func (m *mockRequestService) AddItem(ctx context.Context, req primary.AddItemRequest) (*primary.Request, error) {
	return &primary.Request{ID: req.RequestID}, nil
}

func (m *mockRequestService) RemoveItem(ctx context.Context, req primary.RemoveItemRequest) (*primary.Request, error) {
	return &primary.Request{ID: req.RequestID}, nil
}

func (m *mockRequestService) GetRequest(ctx context.Context, actorID, requestID string) (*primary.Request, error) {
	if m.getRequestFn != nil {
		return m.getRequestFn(ctx, actorID, requestID)
	}
	return nil, errors.New("not configured")
}

func (m *mockRequestService) Reconcile(ctx context.Context, actorID, requestID string) (*primary.ReconcileResult, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, actorID, requestID)
	}
	return &primary.ReconcileResult{RequestID: requestID}, nil
}

func (m *mockRequestService) ReconcileAll(ctx context.Context, actorID string) ([]*primary.ReconcileResult, error) {
	if m.reconcileAllFn != nil {
		return m.reconcileAllFn(ctx, actorID)
	}
	return nil, nil
}

// mockScopeService implements primary.ScopeService for testing
type mockScopeService struct {
	visibleFn func(ctx context.Context, userID string, filters primary.RequestFilters) ([]*primary.Request, error)
	resolveFn func(ctx context.Context, userID string) (*primary.Scope, error)

	lastAssignReq primary.AssignRoleRequest
	assignErr     error
}

func (m *mockScopeService) ResolveScope(ctx context.Context, userID string) (*primary.Scope, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, userID)
	}
	return &primary.Scope{UserID: userID}, nil
}

func (m *mockScopeService) CanAct(ctx context.Context, userID, requestID, action string) error {
	return nil
}

func (m *mockScopeService) ReassignRole(ctx context.Context, req primary.AssignRoleRequest) error {
	m.lastAssignReq = req
	return m.assignErr
}

func (m *mockScopeService) VisibleRequests(ctx context.Context, userID string, filters primary.RequestFilters) ([]*primary.Request, error) {
	if m.visibleFn != nil {
		return m.visibleFn(ctx, userID, filters)
	}
	return []*primary.Request{}, nil
}

// mockStageService implements primary.StageService for testing.
// Only Transition is used by the adapter.
type mockStageService struct {
	transitionFn func(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error)
	lastTransReq primary.TransitionRequest
}

func (m *mockStageService) Transition(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error) {
	m.lastTransReq = req
	if m.transitionFn != nil {
		return m.transitionFn(ctx, req)
	}
	return nil, errors.New("not configured")
}

func (m *mockStageService) Submit(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Approve(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Return(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Reopen(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Procure(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Complete(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockStageService) Cancel(ctx context.Context, req primary.ActionRequest) (*primary.TransitionResponse, error) {
	return nil, errors.New("not implemented in adapter")
}

// mockAuditService implements primary.AuditService for testing
type mockAuditService struct {
	timelineFn func(ctx context.Context, actorID, requestID string) ([]*primary.Transition, error)
	verifyFn   func(ctx context.Context, requestID string) (*primary.ChainReport, error)
}

func (m *mockAuditService) Timeline(ctx context.Context, actorID, requestID string) ([]*primary.Transition, error) {
	if m.timelineFn != nil {
		return m.timelineFn(ctx, actorID, requestID)
	}
	return nil, nil
}

func (m *mockAuditService) Verify(ctx context.Context, requestID string) (*primary.ChainReport, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, requestID)
	}
	return &primary.ChainReport{RequestID: requestID, Intact: true}, nil
}

// mockBudgetService implements primary.BudgetService for testing
type mockBudgetService struct {
	compareFn func(ctx context.Context, actorID, requestID string) (*primary.BudgetComparison, error)
}

func (m *mockBudgetService) Compare(ctx context.Context, actorID, requestID string) (*primary.BudgetComparison, error) {
	if m.compareFn != nil {
		return m.compareFn(ctx, actorID, requestID)
	}
	return nil, errors.New("not configured")
}
