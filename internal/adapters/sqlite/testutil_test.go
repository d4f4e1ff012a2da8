// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/adapters/sqlite"
	"github.com/example/procure/internal/db"
	"github.com/example/procure/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection because every :memory: connection
// is a separate database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Use the authoritative schema from schema.go
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedHierarchy inserts R1{Z1{W1:F1,F2; W2:F3}}, R2{Z2{W3:F4}}.
func seedHierarchy(t *testing.T, database *sql.DB) {
	t.Helper()
	stmts := []string{
		"INSERT INTO regions (id, name) VALUES ('R1', 'Region One'), ('R2', 'Region Two')",
		"INSERT INTO zones (id, region_id, name) VALUES ('Z1', 'R1', 'Zone One'), ('Z2', 'R2', 'Zone Two')",
		"INSERT INTO woredas (id, zone_id, name) VALUES ('W1', 'Z1', 'Woreda One'), ('W2', 'Z1', 'Woreda Two'), ('W3', 'Z2', 'Woreda Three')",
		"INSERT INTO facilities (id, woreda_id, name) VALUES ('F1', 'W1', 'F1'), ('F2', 'W1', 'F2'), ('F3', 'W2', 'F3'), ('F4', 'W3', 'F4')",
	}
	for _, stmt := range stmts {
		if _, err := database.Exec(stmt); err != nil {
			t.Fatalf("failed to seed hierarchy: %v", err)
		}
	}
}

// seedForecast inserts program settings, allocations and forecast lines for MAL/2026.
func seedForecast(t *testing.T, database *sql.DB) {
	t.Helper()
	stmts := []string{
		"INSERT INTO program_settings (program_id, year, psm_percent, budget_total) VALUES ('MAL', 2026, '10', '1000.00')",
		"INSERT INTO funding_allocations (program_id, year, funding_source_id, allocated_amount) VALUES ('MAL', 2026, 'GOV', '400.00'), ('MAL', 2026, 'GF', '500.00'), ('TB', 2026, 'GF', '900.00')",
		`INSERT INTO forecast_lines (ref, program_id, year, product, unit, forecasted_quantity, unit_price) VALUES
			('FL-1', 'MAL', 2026, 'ACT', 'pack', '100', '2.00'),
			('FL-2', 'MAL', 2026, 'RDT', 'test', '200', '1.50'),
			('FL-3', 'MAL', 2026, 'LLIN', 'net', '50', '4.00'),
			('TB-1', 'TB', 2026, 'RHZE', 'blister', '10', '18.40')`,
	}
	for _, stmt := range stmts {
		if _, err := database.Exec(stmt); err != nil {
			t.Fatalf("failed to seed forecast: %v", err)
		}
	}
}

// newRequest builds a two-item draft at the given facility.
func newRequest(id, facilityID, createdAt string) (*secondary.RequestRecord, []*secondary.ItemRecord) {
	req := &secondary.RequestRecord{
		ID:           id,
		ProgramID:    "MAL",
		Year:         2026,
		FacilityID:   facilityID,
		CurrentStage: "draft",
		Status:       "active",
		PSMPercent:   d("10"),
		PSMAmount:    d("50.00"),
		Subtotal:     d("500.00"),
		Total:        d("550.00"),
		OwnerID:      "alice",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	items := []*secondary.ItemRecord{
		{
			ID: id + "-1", RequestID: id, LineNumber: 1, ForecastLineRef: "FL-1", ItemName: "ACT", Unit: "pack",
			OriginalQuantity: d("100"), OriginalUnitPrice: d("2.00"),
			Quantity: d("100"), UnitPrice: d("2.00"), LineSubtotal: d("200.00"),
		},
		{
			ID: id + "-2", RequestID: id, LineNumber: 2, ForecastLineRef: "FL-2", ItemName: "RDT", Unit: "test",
			OriginalQuantity: d("200"), OriginalUnitPrice: d("1.50"),
			Quantity: d("200"), UnitPrice: d("1.50"), LineSubtotal: d("300.00"),
		},
	}
	return req, items
}

// seedRequest persists a two-item draft through the repository.
func seedRequest(t *testing.T, database *sql.DB, id, facilityID, createdAt string) *secondary.RequestRecord {
	t.Helper()
	req, items := newRequest(id, facilityID, createdAt)
	if err := sqlite.NewRequestRepository(database).CreateWithItems(t.Context(), req, items); err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	return req
}
