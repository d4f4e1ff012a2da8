package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_procurement_schema",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_original_values_to_request_items",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "append_only_stage_transitions",
		Up:      migrationV3,
	},
}

// LatestVersion returns the version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration, or 0 when none is recorded.
func CurrentVersion(database *sql.DB) (int, error) {
	if err := ensureVersionTable(database); err != nil {
		return 0, err
	}
	var v int
	if err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return v, nil
}

func ensureVersionTable(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(database *sql.DB, logger zerolog.Logger) error {
	currentVersion, err := CurrentVersion(database)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("running migration")

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// migrationV1 creates the first release of the schema: reference tables,
// requests, items and the transition log.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS regions (id TEXT PRIMARY KEY, name TEXT NOT NULL);
		CREATE TABLE IF NOT EXISTS zones (id TEXT PRIMARY KEY, region_id TEXT NOT NULL, name TEXT NOT NULL);
		CREATE TABLE IF NOT EXISTS woredas (id TEXT PRIMARY KEY, zone_id TEXT NOT NULL, name TEXT NOT NULL);
		CREATE TABLE IF NOT EXISTS facilities (id TEXT PRIMARY KEY, woreda_id TEXT NOT NULL, name TEXT NOT NULL);
		CREATE TABLE IF NOT EXISTS programs (id TEXT PRIMARY KEY, name TEXT NOT NULL, code TEXT NOT NULL UNIQUE);
		CREATE TABLE IF NOT EXISTS program_settings (
			program_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			psm_percent TEXT NOT NULL,
			budget_total TEXT NOT NULL,
			PRIMARY KEY (program_id, year)
		);
		CREATE TABLE IF NOT EXISTS funding_sources (id TEXT PRIMARY KEY, name TEXT NOT NULL);
		CREATE TABLE IF NOT EXISTS funding_allocations (
			program_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			funding_source_id TEXT NOT NULL,
			allocated_amount TEXT NOT NULL,
			PRIMARY KEY (program_id, year, funding_source_id)
		);
		CREATE TABLE IF NOT EXISTS forecast_lines (
			ref TEXT PRIMARY KEY,
			program_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			product TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			forecasted_quantity TEXT NOT NULL,
			unit_price TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			admin_level TEXT NOT NULL,
			facility_id TEXT,
			woreda_id TEXT,
			zone_id TEXT,
			region_id TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS procurement_requests (
			id TEXT PRIMARY KEY,
			program_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			funding_source_id TEXT,
			facility_id TEXT NOT NULL,
			current_stage TEXT NOT NULL DEFAULT 'draft',
			status TEXT NOT NULL DEFAULT 'active',
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
		CREATE TABLE IF NOT EXISTS request_items (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			line_number INTEGER NOT NULL,
			forecast_line_ref TEXT,
			item_name TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			requested_quantity TEXT NOT NULL,
			updated_unit_price TEXT NOT NULL,
			line_subtotal TEXT NOT NULL,
			override INTEGER NOT NULL DEFAULT 0,
			override_reason TEXT,
			FOREIGN KEY (request_id) REFERENCES procurement_requests(id) ON DELETE CASCADE,
			UNIQUE(request_id, line_number)
		);
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
		CREATE INDEX IF NOT EXISTS idx_requests_facility ON procurement_requests(facility_id);
		CREATE INDEX IF NOT EXISTS idx_items_request ON request_items(request_id);
		CREATE INDEX IF NOT EXISTS idx_transitions_request ON stage_transitions(request_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to create initial schema: %w", err)
	}
	return nil
}

// migrationV2 records the forecast values each item started from so overrides
// can be audited. Existing rows take their current values as the originals.
func migrationV2(tx *sql.Tx) error {
	for _, column := range []string{"original_quantity", "original_unit_price"} {
		exists, err := columnExists(tx, "request_items", column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE request_items ADD COLUMN %s TEXT NOT NULL DEFAULT '0'", column)); err != nil {
			return fmt.Errorf("failed to add request_items.%s: %w", column, err)
		}
	}

	_, err := tx.Exec(`
		UPDATE request_items
		SET original_quantity = requested_quantity,
			original_unit_price = updated_unit_price
		WHERE forecast_line_ref IS NOT NULL AND override = 0
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill original values: %w", err)
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_requests_program ON procurement_requests(program_id, year);
		CREATE INDEX IF NOT EXISTS idx_requests_stage ON procurement_requests(current_stage);
		CREATE INDEX IF NOT EXISTS idx_forecast_lines_program ON forecast_lines(program_id, year);
	`)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// migrationV3 makes the transition log append-only.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	if err != nil {
		return fmt.Errorf("failed to create append-only triggers: %w", err)
	}
	return nil
}
