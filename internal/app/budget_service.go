package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/procure/internal/core/budget"
	corescope "github.com/example/procure/internal/core/scope"
	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

// BudgetServiceImpl implements the BudgetService interface.
type BudgetServiceImpl struct {
	requestRepo secondary.RequestRepository
	refRepo     secondary.ReferenceRepository
	scopes      authorizer
}

// NewBudgetService creates a new BudgetService with injected dependencies.
func NewBudgetService(
	requestRepo secondary.RequestRepository,
	refRepo secondary.ReferenceRepository,
	scopes *ScopeServiceImpl,
) *BudgetServiceImpl {
	return &BudgetServiceImpl{
		requestRepo: requestRepo,
		refRepo:     refRepo,
		scopes:      scopes,
	}
}

// Compare reports the budget gap of a committed request. It never writes.
func (s *BudgetServiceImpl) Compare(ctx context.Context, actorID, requestID string) (*primary.BudgetComparison, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if err := s.scopes.authorize(ctx, actorID, record.FacilityID, record.OwnerID, corescope.ActionView); err != nil {
		return nil, err
	}

	var settings *budget.Settings
	rec, err := s.refRepo.GetProgramSettings(ctx, record.ProgramID, record.Year)
	switch {
	case errors.Is(err, errs.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load program settings: %w", err)
	default:
		settings = &budget.Settings{
			ProgramID:   rec.ProgramID,
			Year:        rec.Year,
			PSMPercent:  rec.PSMPercent,
			BudgetTotal: rec.BudgetTotal,
		}
	}

	allocRecords, err := s.refRepo.ListAllocations(ctx, record.ProgramID, record.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	allocations := make([]budget.Allocation, len(allocRecords))
	for i, a := range allocRecords {
		allocations[i] = budget.Allocation{
			ProgramID:       a.ProgramID,
			Year:            a.Year,
			FundingSourceID: a.FundingSourceID,
			Amount:          a.Amount,
		}
	}

	c := budget.Compare(budget.Subject{
		ProgramID:       record.ProgramID,
		Year:            record.Year,
		FundingSourceID: record.FundingSourceID,
		RequestTotal:    record.Total,
	}, settings, allocations)

	return &primary.BudgetComparison{
		RequestID:           record.ID,
		ProgramID:           record.ProgramID,
		Year:                record.Year,
		BudgetKnown:         c.BudgetKnown,
		BudgetTotal:         c.BudgetTotal,
		AllocatedTotal:      c.AllocatedTotal,
		RequestTotal:        c.RequestTotal,
		Gap:                 c.Gap,
		FundingSourceID:     c.FundingSourceID,
		EarmarkedKnown:      c.EarmarkedKnown,
		EarmarkedAllocation: c.EarmarkedAllocation,
		EarmarkedGap:        c.EarmarkedGap,
		OverBudget:          c.OverBudget(),
	}, nil
}

var _ primary.BudgetService = (*BudgetServiceImpl)(nil)
