// Package request contains the pure business logic for building procurement
// drafts from forecast lines and overriding their quantities and prices.
// This is part of the Functional Core - no I/O, only pure functions.
package request

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/core/totals"
	"github.com/example/procure/internal/errs"
)

// ForecastLine is a read-only line produced by the forecasting subsystem.
// Ref is the stable key of the line; it may be empty for sources that do not
// expose one.
type ForecastLine struct {
	Ref       string
	Product   string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Item is a request item. Quantity and price are copies of the forecast
// values, never live references; the originals are kept so overrides can be
// detected.
type Item struct {
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

// Linked reports whether the item still points at a forecast line.
func (i Item) Linked() bool {
	return i.ForecastLineRef != ""
}

// BuildItems converts the selected forecast lines into request items.
// Line numbers start at 1 in selection order.
func BuildItems(lines []ForecastLine) ([]Item, error) {
	if len(lines) == 0 {
		return nil, errs.ErrEmptyRequest
	}

	items := make([]Item, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l.Product) == "" {
			return nil, errs.Invalid("item_name", "product is required")
		}
		sub, err := totals.ComputeLine(l.Quantity, l.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			LineNumber:        i + 1,
			ForecastLineRef:   l.Ref,
			ItemName:          l.Product,
			Unit:              l.Unit,
			OriginalQuantity:  l.Quantity,
			OriginalUnitPrice: l.UnitPrice,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			LineSubtotal:      sub,
		})
	}
	return items, nil
}

// OverrideInput carries the new values for an item. Nil leaves a value as is.
type OverrideInput struct {
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal
	Reason    string
}

// ApplyOverride returns a copy of item carrying the new values.
// Override is true exactly when the effective quantity or price differs from
// the forecast original, and then a reason is mandatory.
func ApplyOverride(item Item, in OverrideInput) (Item, error) {
	if in.Quantity == nil && in.UnitPrice == nil {
		return Item{}, errs.Invalid("override", "quantity or unit price is required")
	}

	out := item
	if in.Quantity != nil {
		out.Quantity = *in.Quantity
	}
	if in.UnitPrice != nil {
		out.UnitPrice = *in.UnitPrice
	}

	sub, err := totals.ComputeLine(out.Quantity, out.UnitPrice)
	if err != nil {
		return Item{}, err
	}
	out.LineSubtotal = sub

	reason := strings.TrimSpace(in.Reason)
	if differsFromOriginal(out) {
		if reason == "" {
			return Item{}, errs.Invalid("override_reason", "required when quantity or price differs from the forecast")
		}
		out.Override = true
		out.OverrideReason = reason
	} else {
		out.Override = false
		out.OverrideReason = ""
	}
	return out, nil
}

func differsFromOriginal(i Item) bool {
	return !i.Quantity.Equal(i.OriginalQuantity) || !i.UnitPrice.Equal(i.OriginalUnitPrice)
}

// NewManualItem builds an unlinked item that has no forecast origin.
// Its originals are zero, so it is always an override and needs a reason.
func NewManualItem(name, unit string, qty, price decimal.Decimal, reason string) (Item, error) {
	if strings.TrimSpace(name) == "" {
		return Item{}, errs.Invalid("item_name", "is required")
	}
	if strings.TrimSpace(reason) == "" {
		return Item{}, errs.Invalid("override_reason", "required for items without a forecast line")
	}
	sub, err := totals.ComputeLine(qty, price)
	if err != nil {
		return Item{}, err
	}
	return Item{
		ItemName:          name,
		Unit:              unit,
		OriginalQuantity:  decimal.Zero,
		OriginalUnitPrice: decimal.Zero,
		Quantity:          qty,
		UnitPrice:         price,
		LineSubtotal:      sub,
		Override:          true,
		OverrideReason:    strings.TrimSpace(reason),
	}, nil
}

// Lines projects items onto the totals engine input.
func Lines(items []Item) []totals.Line {
	lines := make([]totals.Line, len(items))
	for i, it := range items {
		lines[i] = totals.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return lines
}

// Recalculate recomputes every line subtotal and the request totals from the
// item quantities and prices. The returned items are fresh copies.
func Recalculate(items []Item, psmPercent decimal.Decimal) ([]Item, totals.Totals, error) {
	out := make([]Item, len(items))
	for i, it := range items {
		sub, err := totals.ComputeLine(it.Quantity, it.UnitPrice)
		if err != nil {
			return nil, totals.Totals{}, err
		}
		it.LineSubtotal = sub
		out[i] = it
	}
	t, err := totals.ComputeRequestTotals(Lines(out), psmPercent)
	if err != nil {
		return nil, totals.Totals{}, err
	}
	return out, t, nil
}

// NextLineNumber returns the line number for an item appended to items.
func NextLineNumber(items []Item) int {
	highest := 0
	for _, it := range items {
		if it.LineNumber > highest {
			highest = it.LineNumber
		}
	}
	return highest + 1
}
