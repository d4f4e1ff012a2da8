// Package totals computes line and request-level financial totals.
// All arithmetic is fixed-point. Line subtotals are exact; only the PSM
// amount is rounded, to CurrencyPlaces.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/errs"
)

// CurrencyPlaces is the number of decimal places the PSM amount keeps.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Line is the quantity and unit price pair of one request item.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Totals are the request-level derived amounts.
type Totals struct {
	Subtotal  decimal.Decimal
	PSMAmount decimal.Decimal
	Total     decimal.Decimal
}

// Equal reports whether two totals carry the same amounts.
func (t Totals) Equal(other Totals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.PSMAmount.Equal(other.PSMAmount) &&
		t.Total.Equal(other.Total)
}

// ComputeLine returns qty × price. Negative operands are rejected, not clamped.
func ComputeLine(qty, price decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsNegative() {
		return decimal.Zero, errs.Invalid("requested_quantity", "must not be negative")
	}
	if price.IsNegative() {
		return decimal.Zero, errs.Invalid("unit_price", "must not be negative")
	}
	return qty.Mul(price), nil
}

// PSMAmount applies the program service margin to a subtotal.
func PSMAmount(subtotal, psmPercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(psmPercent).Div(hundred).Round(CurrencyPlaces)
}

// ComputeRequestTotals sums line subtotals and applies the margin:
//
//	subtotal  = Σ line subtotal
//	psmAmount = round(subtotal × psmPercent / 100)
//	total     = subtotal + psmAmount
func ComputeRequestTotals(lines []Line, psmPercent decimal.Decimal) (Totals, error) {
	if psmPercent.IsNegative() {
		return Totals{}, errs.Invalid("psm_percent", "must not be negative")
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		sub, err := ComputeLine(l.Quantity, l.UnitPrice)
		if err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(sub)
	}

	psm := PSMAmount(subtotal, psmPercent)
	return Totals{
		Subtotal:  subtotal,
		PSMAmount: psm,
		Total:     subtotal.Add(psm),
	}, nil
}
