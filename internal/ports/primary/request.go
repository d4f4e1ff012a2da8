package primary

import (
	"context"

	"github.com/shopspring/decimal"
)

// RequestService defines the primary port for building and editing
// procurement requests. Every item mutation recomputes and persists the
// item and request totals as one unit.
type RequestService interface {
	// CreateDraft builds a draft request from selected forecast lines.
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*CreateDraftResponse, error)

	// AddOverride changes the quantity and/or price of an item.
	AddOverride(ctx context.Context, req AddOverrideRequest) (*Request, error)

	// AddItem appends an unlinked item that has no forecast line.
	AddItem(ctx context.Context, req AddItemRequest) (*Request, error)

	// RemoveItem removes an item; the request keeps at least one.
	RemoveItem(ctx context.Context, req RemoveItemRequest) (*Request, error)

	// GetRequest retrieves a request with its items, gated by the actor's scope.
	GetRequest(ctx context.Context, actorID, requestID string) (*Request, error)

	// Reconcile recomputes request totals from the persisted items.
	// The actor must be a national admin.
	Reconcile(ctx context.Context, actorID, requestID string) (*ReconcileResult, error)

	// ReconcileAll reconciles every request.
	ReconcileAll(ctx context.Context, actorID string) ([]*ReconcileResult, error)
}

// ForecastLine is a forecast line handed to CreateDraft by the caller.
type ForecastLine struct {
	Ref       string
	Product   string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateDraftRequest contains parameters for creating a draft.
// Lines and ForecastRefs are combined; refs are looked up in reference data.
type CreateDraftRequest struct {
	ActorID         string
	ProgramID       string
	Year            int
	FundingSourceID string // Empty means pooled
	FacilityID      string
	Notes           string
	Lines           []ForecastLine
	ForecastRefs    []string
}

// CreateDraftResponse contains the result of creating a draft.
type CreateDraftResponse struct {
	RequestID string
	Request   *Request
	// BudgetKnown is false when the program year has no settings.
	BudgetKnown bool
}

// AddOverrideRequest contains parameters for overriding an item.
// Nil values are left unchanged.
type AddOverrideRequest struct {
	ActorID   string
	RequestID string
	ItemID    string
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal
	Reason    string
}

// AddItemRequest contains parameters for adding a manual item.
type AddItemRequest struct {
	ActorID   string
	RequestID string
	ItemName  string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Reason    string
}

// RemoveItemRequest contains parameters for removing an item.
type RemoveItemRequest struct {
	ActorID   string
	RequestID string
	ItemID    string
}

// ReconcileResult reports the outcome of a reconciliation pass.
type ReconcileResult struct {
	RequestID     string
	Changed       bool
	PreviousTotal decimal.Decimal
	Subtotal      decimal.Decimal
	PSMAmount     decimal.Decimal
	Total         decimal.Decimal
}

// Request represents a procurement request at the port boundary.
type Request struct {
	ID              string
	ProgramID       string
	Year            int
	FundingSourceID string
	FacilityID      string
	Stage           string
	Status          string
	PSMPercent      decimal.Decimal
	PSMAmount       decimal.Decimal
	Subtotal        decimal.Decimal
	Total           decimal.Decimal
	Notes           string
	OwnerID         string
	CreatedAt       string
	UpdatedAt       string
	ClosedAt        string
	Items           []*Item
}

// Item represents a request item at the port boundary.
type Item struct {
	ID                string
	LineNumber        int
	ForecastLineRef   string
	ItemName          string
	Unit              string
	OriginalQuantity  decimal.Decimal
	OriginalUnitPrice decimal.Decimal
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	LineSubtotal      decimal.Decimal
	Override          bool
	OverrideReason    string
}

// RequestFilters contains filter options for listing requests.
type RequestFilters struct {
	ProgramID string
	Year      int
	Stage     string
	Limit     int
}
