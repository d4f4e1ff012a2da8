package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/ports/primary"
)

// parseDecimalFlag parses an optional decimal flag value. Empty means unset.
func parseDecimalFlag(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return &d, nil
}

// parseLine parses an inline forecast line of the form
// REF|PRODUCT|UNIT|QUANTITY|UNIT_PRICE.
func parseLine(s string) (primary.ForecastLine, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 5 {
		return primary.ForecastLine{}, fmt.Errorf("invalid --line %q: want REF|PRODUCT|UNIT|QUANTITY|UNIT_PRICE", s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	qty, err := decimal.NewFromString(parts[3])
	if err != nil {
		return primary.ForecastLine{}, fmt.Errorf("invalid quantity in --line %q: %w", s, err)
	}
	price, err := decimal.NewFromString(parts[4])
	if err != nil {
		return primary.ForecastLine{}, fmt.Errorf("invalid unit price in --line %q: %w", s, err)
	}

	return primary.ForecastLine{
		Ref:       parts[0],
		Product:   parts[1],
		Unit:      parts[2],
		Quantity:  qty,
		UnitPrice: price,
	}, nil
}

// assignRoleRequest places unitID in the field matching level.
func assignRoleRequest(userID, role, level, unitID string) (primary.AssignRoleRequest, error) {
	req := primary.AssignRoleRequest{UserID: userID, Role: role, AdminLevel: level}
	switch level {
	case "facility":
		req.FacilityID = unitID
	case "woreda":
		req.WoredaID = unitID
	case "zone":
		req.ZoneID = unitID
	case "regional":
		req.RegionID = unitID
	case "national":
		if unitID != "" {
			return req, fmt.Errorf("national roles take no --unit")
		}
	default:
		return req, fmt.Errorf("unknown level %q (want facility, woreda, zone, regional or national)", level)
	}
	if level != "national" && unitID == "" {
		return req, fmt.Errorf("--unit is required for %s roles", level)
	}
	return req, nil
}
