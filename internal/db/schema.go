package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// SchemaSQL is the complete schema for fresh procure installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the SQLite schema. All tests use
// this schema via GetSchemaSQL(), so a repository that references a column
// missing here fails immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Update the PostgreSQL schema in internal/adapters/postgres
//
// Money and quantities are stored as canonical decimal strings.
const SchemaSQL = `
-- Organizational hierarchy (reference data, read-only to the core)
CREATE TABLE IF NOT EXISTS regions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	id TEXT PRIMARY KEY,
	region_id TEXT NOT NULL,
	name TEXT NOT NULL,
	FOREIGN KEY (region_id) REFERENCES regions(id)
);

CREATE TABLE IF NOT EXISTS woredas (
	id TEXT PRIMARY KEY,
	zone_id TEXT NOT NULL,
	name TEXT NOT NULL,
	FOREIGN KEY (zone_id) REFERENCES zones(id)
);

CREATE TABLE IF NOT EXISTS facilities (
	id TEXT PRIMARY KEY,
	woreda_id TEXT NOT NULL,
	name TEXT NOT NULL,
	FOREIGN KEY (woreda_id) REFERENCES woredas(id)
);

CREATE INDEX IF NOT EXISTS idx_facilities_woreda ON facilities(woreda_id);
CREATE INDEX IF NOT EXISTS idx_woredas_zone ON woredas(zone_id);
CREATE INDEX IF NOT EXISTS idx_zones_region ON zones(region_id);

-- Programs, settings and funding (reference data)
CREATE TABLE IF NOT EXISTS programs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS program_settings (
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	psm_percent TEXT NOT NULL,
	budget_total TEXT NOT NULL,
	PRIMARY KEY (program_id, year)
);

CREATE TABLE IF NOT EXISTS funding_sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS funding_allocations (
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	funding_source_id TEXT NOT NULL,
	allocated_amount TEXT NOT NULL,
	PRIMARY KEY (program_id, year, funding_source_id)
);

-- Forecast lines (produced by the forecasting subsystem)
CREATE TABLE IF NOT EXISTS forecast_lines (
	ref TEXT PRIMARY KEY,
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	product TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	forecasted_quantity TEXT NOT NULL,
	unit_price TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forecast_lines_program ON forecast_lines(program_id, year);

-- Role assignments: exactly one unit id for non-national levels
CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT PRIMARY KEY,
	role TEXT NOT NULL CHECK(role IN ('requester', 'reviewer', 'procurement_officer', 'admin')),
	admin_level TEXT NOT NULL CHECK(admin_level IN ('facility', 'woreda', 'zone', 'regional', 'national')),
	facility_id TEXT,
	woreda_id TEXT,
	zone_id TEXT,
	region_id TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	CHECK (
		(admin_level = 'facility' AND facility_id IS NOT NULL AND woreda_id IS NULL AND zone_id IS NULL AND region_id IS NULL) OR
		(admin_level = 'woreda' AND woreda_id IS NOT NULL AND facility_id IS NULL AND zone_id IS NULL AND region_id IS NULL) OR
		(admin_level = 'zone' AND zone_id IS NOT NULL AND facility_id IS NULL AND woreda_id IS NULL AND region_id IS NULL) OR
		(admin_level = 'regional' AND region_id IS NOT NULL AND facility_id IS NULL AND woreda_id IS NULL AND zone_id IS NULL) OR
		(admin_level = 'national' AND facility_id IS NULL AND woreda_id IS NULL AND zone_id IS NULL AND region_id IS NULL)
	)
);

-- Procurement requests (owned by the core)
CREATE TABLE IF NOT EXISTS procurement_requests (
	id TEXT PRIMARY KEY,
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	funding_source_id TEXT,
	facility_id TEXT NOT NULL,
	current_stage TEXT NOT NULL CHECK(current_stage IN ('draft', 'submitted', 'approved', 'in_procurement', 'completed', 'cancelled', 'returned')) DEFAULT 'draft',
	status TEXT NOT NULL CHECK(status IN ('active', 'closed')) DEFAULT 'active',
	psm_percent TEXT NOT NULL,
	psm_amount TEXT NOT NULL,
	request_subtotal TEXT NOT NULL,
	request_total TEXT NOT NULL,
	notes TEXT,
	owner_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	closed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_requests_facility ON procurement_requests(facility_id);
CREATE INDEX IF NOT EXISTS idx_requests_program ON procurement_requests(program_id, year);
CREATE INDEX IF NOT EXISTS idx_requests_stage ON procurement_requests(current_stage);

CREATE TABLE IF NOT EXISTS request_items (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	line_number INTEGER NOT NULL,
	forecast_line_ref TEXT,
	item_name TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	original_quantity TEXT NOT NULL DEFAULT '0',
	original_unit_price TEXT NOT NULL DEFAULT '0',
	requested_quantity TEXT NOT NULL,
	updated_unit_price TEXT NOT NULL,
	line_subtotal TEXT NOT NULL,
	override INTEGER NOT NULL DEFAULT 0 CHECK(override IN (0, 1)),
	override_reason TEXT,
	FOREIGN KEY (request_id) REFERENCES procurement_requests(id) ON DELETE CASCADE,
	UNIQUE(request_id, line_number)
);

CREATE INDEX IF NOT EXISTS idx_items_request ON request_items(request_id);

-- Stage transitions: append-only ledger
CREATE TABLE IF NOT EXISTS stage_transitions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	request_id TEXT NOT NULL,
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	decision TEXT NOT NULL,
	comment TEXT,
	attachment_ref TEXT,
	created_at TEXT NOT NULL,
	FOREIGN KEY (request_id) REFERENCES procurement_requests(id)
);

CREATE INDEX IF NOT EXISTS idx_transitions_request ON stage_transitions(request_id, seq);

CREATE TRIGGER IF NOT EXISTS stage_transitions_no_update
BEFORE UPDATE ON stage_transitions
BEGIN
	SELECT RAISE(ABORT, 'stage_transitions is append-only');
END;

CREATE TRIGGER IF NOT EXISTS stage_transitions_no_delete
BEFORE DELETE ON stage_transitions
BEGIN
	SELECT RAISE(ABORT, 'stage_transitions is append-only');
END;
`

// InitSchema brings the database to the current schema.
// Fresh databases get SchemaSQL directly with every migration marked applied;
// existing databases run their pending migrations.
func InitSchema(database *sql.DB, logger zerolog.Logger) error {
	var tableCount int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}
	if tableCount > 0 {
		return RunMigrations(database, logger)
	}

	var existing int
	err = database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='procurement_requests'").Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		// Pre-versioning database: migrations upgrade it in place
		return RunMigrations(database, logger)
	}

	if _, err := database.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := ensureVersionTable(database); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	logger.Info().Int("version", LatestVersion()).Msg("created fresh schema")
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
