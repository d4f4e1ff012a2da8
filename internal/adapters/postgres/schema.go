package postgres

// SchemaSQL is the PostgreSQL counterpart of the SQLite schema in internal/db.
// Keep both in step when adding columns.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS regions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	id TEXT PRIMARY KEY,
	region_id TEXT NOT NULL REFERENCES regions(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS woredas (
	id TEXT PRIMARY KEY,
	zone_id TEXT NOT NULL REFERENCES zones(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facilities (
	id TEXT PRIMARY KEY,
	woreda_id TEXT NOT NULL REFERENCES woredas(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS programs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS program_settings (
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	psm_percent NUMERIC(7, 4) NOT NULL CHECK (psm_percent >= 0),
	budget_total NUMERIC(18, 2) NOT NULL,
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
	allocated_amount NUMERIC(18, 2) NOT NULL,
	PRIMARY KEY (program_id, year, funding_source_id)
);

CREATE TABLE IF NOT EXISTS forecast_lines (
	ref TEXT PRIMARY KEY,
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	product TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	forecasted_quantity NUMERIC(18, 4) NOT NULL,
	unit_price NUMERIC(18, 4) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forecast_lines_program ON forecast_lines(program_id, year);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT PRIMARY KEY,
	role TEXT NOT NULL CHECK (role IN ('requester', 'reviewer', 'procurement_officer', 'admin')),
	admin_level TEXT NOT NULL CHECK (admin_level IN ('facility', 'woreda', 'zone', 'regional', 'national')),
	facility_id TEXT,
	woreda_id TEXT,
	zone_id TEXT,
	region_id TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (num_nonnulls(facility_id, woreda_id, zone_id, region_id) = CASE WHEN admin_level = 'national' THEN 0 ELSE 1 END)
);

CREATE TABLE IF NOT EXISTS procurement_requests (
	id TEXT PRIMARY KEY,
	program_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	funding_source_id TEXT,
	facility_id TEXT NOT NULL,
	current_stage TEXT NOT NULL DEFAULT 'draft'
		CHECK (current_stage IN ('draft', 'submitted', 'approved', 'in_procurement', 'completed', 'cancelled', 'returned')),
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed')),
	psm_percent NUMERIC(7, 4) NOT NULL,
	psm_amount NUMERIC(18, 2) NOT NULL,
	request_subtotal NUMERIC NOT NULL,
	request_total NUMERIC NOT NULL,
	notes TEXT,
	owner_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_requests_facility ON procurement_requests(facility_id);
CREATE INDEX IF NOT EXISTS idx_requests_program ON procurement_requests(program_id, year);

CREATE TABLE IF NOT EXISTS request_items (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES procurement_requests(id) ON DELETE CASCADE,
	line_number INTEGER NOT NULL,
	forecast_line_ref TEXT,
	item_name TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	original_quantity NUMERIC(18, 4) NOT NULL DEFAULT 0,
	original_unit_price NUMERIC(18, 4) NOT NULL DEFAULT 0,
	requested_quantity NUMERIC(18, 4) NOT NULL CHECK (requested_quantity >= 0),
	updated_unit_price NUMERIC(18, 4) NOT NULL CHECK (updated_unit_price >= 0),
	line_subtotal NUMERIC NOT NULL,
	override BOOLEAN NOT NULL DEFAULT FALSE,
	override_reason TEXT,
	UNIQUE (request_id, line_number)
);

CREATE TABLE IF NOT EXISTS stage_transitions (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	request_id TEXT NOT NULL REFERENCES procurement_requests(id),
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	decision TEXT NOT NULL,
	comment TEXT,
	attachment_ref TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_request ON stage_transitions(request_id, seq);

CREATE OR REPLACE FUNCTION stage_transitions_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'stage_transitions is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS stage_transitions_no_update ON stage_transitions;
CREATE TRIGGER stage_transitions_no_update
	BEFORE UPDATE OR DELETE ON stage_transitions
	FOR EACH ROW EXECUTE FUNCTION stage_transitions_append_only();
`
