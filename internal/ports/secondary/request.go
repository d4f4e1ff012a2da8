package secondary

import (
	"context"

	"github.com/shopspring/decimal"
)

// RequestRepository defines the secondary port for procurement request persistence.
// Every method that writes more than one row does so in a single transaction.
type RequestRepository interface {
	// CreateWithItems persists a new request together with its items.
	CreateWithItems(ctx context.Context, request *RequestRecord, items []*ItemRecord) error

	// GetByID retrieves a request by its ID.
	GetByID(ctx context.Context, id string) (*RequestRecord, error)

	// GetItems retrieves the items of a request ordered by line number.
	GetItems(ctx context.Context, requestID string) ([]*ItemRecord, error)

	// List retrieves requests matching the given filters, newest first.
	List(ctx context.Context, filters RequestFilters) ([]*RequestRecord, error)

	// SaveItemsWithTotals upserts and deletes items and rewrites the request
	// totals atomically. Returns StaleStageError if the request left
	// ExpectedStage since it was read.
	SaveItemsWithTotals(ctx context.Context, change ItemChange) error

	// TransitionStage moves the request from ExpectedStage to NewStage and
	// appends the transition record in the same transaction. Returns
	// StaleStageError when the compare-and-swap matches no row.
	TransitionStage(ctx context.Context, change StageChange) error
}

// TransitionRepository is the read side of the append-only stage ledger.
// Records are written only through RequestRepository.TransitionStage and are
// never updated or deleted.
type TransitionRepository interface {
	// ListByRequest returns the transitions of a request, oldest first.
	ListByRequest(ctx context.Context, requestID string) ([]*TransitionRecord, error)
}

// RequestRecord represents a procurement request as stored in persistence.
type RequestRecord struct {
	ID              string
	ProgramID       string
	Year            int
	FundingSourceID string // Empty means pooled
	FacilityID      string
	CurrentStage    string
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
}

// ItemRecord represents a request item as stored in persistence.
type ItemRecord struct {
	ID                string
	RequestID         string
	LineNumber        int
	ForecastLineRef   string // Empty for unlinked items
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

// TransitionRecord represents one accepted stage transition.
type TransitionRecord struct {
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

// RequestFilters contains filter options for querying requests.
// A nil FacilityIDs places no facility restriction; an empty non-nil slice
// matches nothing.
type RequestFilters struct {
	FacilityIDs []string
	ProgramID   string
	Year        int
	Stage       string
	Limit       int
}

// ItemChange describes one atomic item edit and the totals that result from it.
type ItemChange struct {
	RequestID     string
	ExpectedStage string
	Upserts       []*ItemRecord
	DeleteIDs     []string
	Subtotal      decimal.Decimal
	PSMAmount     decimal.Decimal
	Total         decimal.Decimal
	UpdatedAt     string
}

// StageChange describes a compare-and-swap stage update.
type StageChange struct {
	RequestID     string
	ExpectedStage string
	NewStage      string
	NewStatus     string
	ClosedAt      string
	Transition    *TransitionRecord
}
