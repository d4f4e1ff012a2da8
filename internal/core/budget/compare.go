// Package budget compares a request total against program budget figures.
// This is part of the Functional Core - no I/O, only pure functions.
package budget

import "github.com/shopspring/decimal"

// Settings are the program settings for one program year.
type Settings struct {
	ProgramID   string
	Year        int
	PSMPercent  decimal.Decimal
	BudgetTotal decimal.Decimal
}

// Allocation is the amount a funding source contributes to a program year.
type Allocation struct {
	ProgramID       string
	Year            int
	FundingSourceID string
	Amount          decimal.Decimal
}

// Subject is the slice of a committed request the comparison reads.
type Subject struct {
	ProgramID       string
	Year            int
	FundingSourceID string // Empty means pooled
	RequestTotal    decimal.Decimal
}

// Comparison reports pooled and, when earmarked, source-specific headroom.
// A negative gap means the request exceeds the budget.
type Comparison struct {
	BudgetKnown    bool
	BudgetTotal    decimal.Decimal
	AllocatedTotal decimal.Decimal
	RequestTotal   decimal.Decimal
	Gap            decimal.Decimal

	FundingSourceID     string
	EarmarkedKnown      bool
	EarmarkedAllocation decimal.Decimal
	EarmarkedGap        decimal.Decimal
}

// OverBudget reports whether any known gap is negative.
func (c Comparison) OverBudget() bool {
	if c.BudgetKnown && c.Gap.IsNegative() {
		return true
	}
	return c.EarmarkedKnown && c.EarmarkedGap.IsNegative()
}

// Compare reports the budget gap of subject. settings may be nil, in which
// case the budget is unknown rather than zero. Allocations for other program
// years are ignored.
func Compare(subject Subject, settings *Settings, allocations []Allocation) Comparison {
	c := Comparison{
		RequestTotal:        subject.RequestTotal,
		BudgetTotal:         decimal.Zero,
		AllocatedTotal:      decimal.Zero,
		Gap:                 decimal.Zero,
		FundingSourceID:     subject.FundingSourceID,
		EarmarkedAllocation: decimal.Zero,
		EarmarkedGap:        decimal.Zero,
	}

	if settings != nil {
		c.BudgetKnown = true
		c.BudgetTotal = settings.BudgetTotal
		c.Gap = settings.BudgetTotal.Sub(subject.RequestTotal)
	}

	for _, a := range allocations {
		if a.ProgramID != subject.ProgramID || a.Year != subject.Year {
			continue
		}
		c.AllocatedTotal = c.AllocatedTotal.Add(a.Amount)
		if subject.FundingSourceID != "" && a.FundingSourceID == subject.FundingSourceID {
			c.EarmarkedKnown = true
			c.EarmarkedAllocation = c.EarmarkedAllocation.Add(a.Amount)
		}
	}

	if c.EarmarkedKnown {
		c.EarmarkedGap = c.EarmarkedAllocation.Sub(subject.RequestTotal)
	}
	return c
}
