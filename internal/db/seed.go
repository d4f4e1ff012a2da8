package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedDemo populates the reference tables with a small but complete demo
// hierarchy: two regions, role holders at every level, two programs with
// settings, allocations and forecast lines. Safe to run repeatedly.
func SeedDemo(database *sql.DB) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	// Regions
	regions := []struct{ id, name string }{
		{"REG-OR", "Oromia"},
		{"REG-AM", "Amhara"},
	}
	for _, r := range regions {
		if _, err := tx.Exec("INSERT OR IGNORE INTO regions (id, name) VALUES (?, ?)", r.id, r.name); err != nil {
			return fmt.Errorf("seed regions: %w", err)
		}
	}

	// Zones
	zones := []struct{ id, regionID, name string }{
		{"ZN-ESH", "REG-OR", "East Shewa"},
		{"ZN-WSH", "REG-OR", "West Shewa"},
		{"ZN-NGD", "REG-AM", "North Gondar"},
	}
	for _, z := range zones {
		if _, err := tx.Exec("INSERT OR IGNORE INTO zones (id, region_id, name) VALUES (?, ?, ?)", z.id, z.regionID, z.name); err != nil {
			return fmt.Errorf("seed zones: %w", err)
		}
	}

	// Woredas
	woredas := []struct{ id, zoneID, name string }{
		{"WOR-ADA", "ZN-ESH", "Adama"},
		{"WOR-BIS", "ZN-ESH", "Bishoftu"},
		{"WOR-AMB", "ZN-WSH", "Ambo"},
		{"WOR-DEB", "ZN-NGD", "Debark"},
	}
	for _, w := range woredas {
		if _, err := tx.Exec("INSERT OR IGNORE INTO woredas (id, zone_id, name) VALUES (?, ?, ?)", w.id, w.zoneID, w.name); err != nil {
			return fmt.Errorf("seed woredas: %w", err)
		}
	}

	// Facilities
	facilities := []struct{ id, woredaID, name string }{
		{"FAC-ADA-HC", "WOR-ADA", "Adama Health Center"},
		{"FAC-ADA-HOS", "WOR-ADA", "Adama General Hospital"},
		{"FAC-BIS-HC", "WOR-BIS", "Bishoftu Health Center"},
		{"FAC-AMB-HC", "WOR-AMB", "Ambo Health Center"},
		{"FAC-DEB-HC", "WOR-DEB", "Debark Health Center"},
	}
	for _, f := range facilities {
		if _, err := tx.Exec("INSERT OR IGNORE INTO facilities (id, woreda_id, name) VALUES (?, ?, ?)", f.id, f.woredaID, f.name); err != nil {
			return fmt.Errorf("seed facilities: %w", err)
		}
	}

	// Programs and settings
	programs := []struct{ id, name, code string }{
		{"MAL", "Malaria Prevention and Control", "MAL"},
		{"TB", "Tuberculosis", "TB"},
	}
	for _, p := range programs {
		if _, err := tx.Exec("INSERT OR IGNORE INTO programs (id, name, code) VALUES (?, ?, ?)", p.id, p.name, p.code); err != nil {
			return fmt.Errorf("seed programs: %w", err)
		}
	}

	settings := []struct {
		programID   string
		year        int
		psmPercent  string
		budgetTotal string
	}{
		{"MAL", 2026, "10", "250000.00"},
		{"TB", 2026, "8", "120000.00"},
	}
	for _, s := range settings {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO program_settings (program_id, year, psm_percent, budget_total) VALUES (?, ?, ?, ?)",
			s.programID, s.year, s.psmPercent, s.budgetTotal,
		); err != nil {
			return fmt.Errorf("seed program settings: %w", err)
		}
	}

	// Funding
	sources := []struct{ id, name string }{
		{"GF", "Global Fund"},
		{"GOV", "Government Treasury"},
	}
	for _, s := range sources {
		if _, err := tx.Exec("INSERT OR IGNORE INTO funding_sources (id, name) VALUES (?, ?)", s.id, s.name); err != nil {
			return fmt.Errorf("seed funding sources: %w", err)
		}
	}

	allocations := []struct {
		programID, sourceID string
		year                int
		amount              string
	}{
		{"MAL", "GF", 2026, "150000.00"},
		{"MAL", "GOV", 2026, "80000.00"},
		{"TB", "GOV", 2026, "120000.00"},
	}
	for _, a := range allocations {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO funding_allocations (program_id, year, funding_source_id, allocated_amount) VALUES (?, ?, ?, ?)",
			a.programID, a.year, a.sourceID, a.amount,
		); err != nil {
			return fmt.Errorf("seed allocations: %w", err)
		}
	}

	// Forecast lines
	lines := []struct {
		ref, programID  string
		year            int
		product, unit   string
		quantity, price string
	}{
		{"MAL-2026-001", "MAL", 2026, "Artemether/Lumefantrine 20/120mg", "pack of 24", "5000", "12.50"},
		{"MAL-2026-002", "MAL", 2026, "Malaria RDT (Pf/Pv)", "test", "10000", "0.85"},
		{"MAL-2026-003", "MAL", 2026, "Long-lasting insecticidal net", "net", "2000", "3.20"},
		{"TB-2026-001", "TB", 2026, "RHZE 150/75/400/275mg", "blister of 28", "3000", "18.40"},
		{"TB-2026-002", "TB", 2026, "Isoniazid 300mg", "bottle of 100", "800", "4.75"},
	}
	for _, l := range lines {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO forecast_lines (ref, program_id, year, product, unit, forecasted_quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ref, l.programID, l.year, l.product, l.unit, l.quantity, l.price,
		); err != nil {
			return fmt.Errorf("seed forecast lines: %w", err)
		}
	}

	// Role holders, one per level
	roles := []struct {
		userID, role, level                     string
		facilityID, woredaID, zoneID, regionID any
	}{
		{"abebe", "requester", "facility", "FAC-ADA-HC", nil, nil, nil},
		{"selam", "requester", "facility", "FAC-DEB-HC", nil, nil, nil},
		{"tigist", "reviewer", "woreda", nil, "WOR-ADA", nil, nil},
		{"dawit", "reviewer", "zone", nil, nil, "ZN-ESH", nil},
		{"hana", "procurement_officer", "regional", nil, nil, nil, "REG-OR"},
		{"meron", "admin", "national", nil, nil, nil, nil},
	}
	for _, r := range roles {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO user_roles (user_id, role, admin_level, facility_id, woreda_id, zone_id, region_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.userID, r.role, r.level, r.facilityID, r.woredaID, r.zoneID, r.regionID, now,
		); err != nil {
			return fmt.Errorf("seed user roles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}
