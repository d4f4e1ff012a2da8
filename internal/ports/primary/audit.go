package primary

import (
	"context"

	"github.com/shopspring/decimal"
)

// AuditService defines the primary port for reading the stage ledger.
type AuditService interface {
	// Timeline returns the transitions of a request oldest first,
	// gated by the actor's scope.
	Timeline(ctx context.Context, actorID, requestID string) ([]*Transition, error)

	// Verify checks that the ledger forms an unbroken chain ending in the
	// request's current stage.
	Verify(ctx context.Context, requestID string) (*ChainReport, error)
}

// ChainReport is the outcome of a ledger verification.
type ChainReport struct {
	RequestID    string
	CurrentStage string
	Transitions  int
	Intact       bool
	Problems     []string
}

// BudgetService defines the primary port for budget comparison.
type BudgetService interface {
	// Compare reports the request total against the program budget and,
	// for earmarked requests, against the funding source allocation.
	Compare(ctx context.Context, actorID, requestID string) (*BudgetComparison, error)
}

// BudgetComparison represents a budget comparison at the port boundary.
type BudgetComparison struct {
	RequestID           string
	ProgramID           string
	Year                int
	BudgetKnown         bool
	BudgetTotal         decimal.Decimal
	AllocatedTotal      decimal.Decimal
	RequestTotal        decimal.Decimal
	Gap                 decimal.Decimal
	FundingSourceID     string
	EarmarkedKnown      bool
	EarmarkedAllocation decimal.Decimal
	EarmarkedGap        decimal.Decimal
	OverBudget          bool
}
