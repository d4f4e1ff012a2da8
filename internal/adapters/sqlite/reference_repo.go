package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// ReferenceRepository implements secondary.ReferenceRepository with SQLite.
type ReferenceRepository struct {
	db *sql.DB
}

// NewReferenceRepository creates a new SQLite reference repository.
func NewReferenceRepository(db *sql.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetProgramSettings returns the settings of a program year, or ErrNotFound.
func (r *ReferenceRepository) GetProgramSettings(ctx context.Context, programID string, year int) (*secondary.ProgramSettingsRecord, error) {
	record := &secondary.ProgramSettingsRecord{}
	err := r.db.QueryRowContext(ctx,
		"SELECT program_id, year, psm_percent, budget_total FROM program_settings WHERE program_id = ? AND year = ?",
		programID, year,
	).Scan(&record.ProgramID, &record.Year, &record.PSMPercent, &record.BudgetTotal)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("program settings", fmt.Sprintf("%s/%d", programID, year))
	}
	if err != nil {
		return nil, errs.Persistence("get program settings", err)
	}
	return record, nil
}

// ListAllocations returns the funding allocations of a program year.
func (r *ReferenceRepository) ListAllocations(ctx context.Context, programID string, year int) ([]*secondary.AllocationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT program_id, year, funding_source_id, allocated_amount
		FROM funding_allocations WHERE program_id = ? AND year = ? ORDER BY funding_source_id`,
		programID, year,
	)
	if err != nil {
		return nil, errs.Persistence("list allocations", err)
	}
	defer rows.Close()

	var allocations []*secondary.AllocationRecord
	for rows.Next() {
		a := &secondary.AllocationRecord{}
		if err := rows.Scan(&a.ProgramID, &a.Year, &a.FundingSourceID, &a.Amount); err != nil {
			return nil, errs.Persistence("scan allocation", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, errs.Persistence("list allocations", rows.Err())
}

// GetHierarchy returns a snapshot of the facility/woreda/zone tree.
func (r *ReferenceRepository) GetHierarchy(ctx context.Context) (*secondary.HierarchyRecord, error) {
	h := &secondary.HierarchyRecord{}
	var err error
	if h.FacilityWoreda, err = r.parentMap(ctx, "SELECT id, woreda_id FROM facilities"); err != nil {
		return nil, err
	}
	if h.WoredaZone, err = r.parentMap(ctx, "SELECT id, zone_id FROM woredas"); err != nil {
		return nil, err
	}
	if h.ZoneRegion, err = r.parentMap(ctx, "SELECT id, region_id FROM zones"); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *ReferenceRepository) parentMap(ctx context.Context, query string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Persistence("load hierarchy", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var child, parent string
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, errs.Persistence("scan hierarchy", err)
		}
		m[child] = parent
	}
	return m, errs.Persistence("load hierarchy", rows.Err())
}

// GetUserRole returns the role assigned to a user, or ErrNotFound.
func (r *ReferenceRepository) GetUserRole(ctx context.Context, userID string) (*secondary.UserRoleRecord, error) {
	var facilityID, woredaID, zoneID, regionID sql.NullString
	record := &secondary.UserRoleRecord{}
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, role, admin_level, facility_id, woreda_id, zone_id, region_id FROM user_roles WHERE user_id = ?",
		userID,
	).Scan(&record.UserID, &record.Role, &record.AdminLevel, &facilityID, &woredaID, &zoneID, &regionID)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("user role", userID)
	}
	if err != nil {
		return nil, errs.Persistence("get user role", err)
	}
	record.FacilityID = facilityID.String
	record.WoredaID = woredaID.String
	record.ZoneID = zoneID.String
	record.RegionID = regionID.String
	return record, nil
}

// SaveUserRole creates or replaces the role assigned to a user.
func (r *ReferenceRepository) SaveUserRole(ctx context.Context, role *secondary.UserRoleRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, admin_level, facility_id, woreda_id, zone_id, region_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			role = excluded.role,
			admin_level = excluded.admin_level,
			facility_id = excluded.facility_id,
			woreda_id = excluded.woreda_id,
			zone_id = excluded.zone_id,
			region_id = excluded.region_id,
			updated_at = excluded.updated_at`,
		role.UserID, role.Role, role.AdminLevel, nullString(role.FacilityID), nullString(role.WoredaID),
		nullString(role.ZoneID), nullString(role.RegionID), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errs.Persistence("save user role", err)
	}
	return nil
}

// GetForecastLines returns the forecast lines with the given refs in the order
// requested. Unknown refs, or refs of another program year, are an error.
func (r *ReferenceRepository) GetForecastLines(ctx context.Context, programID string, year int, refs []string) ([]*secondary.ForecastLineRecord, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	args := []any{programID, year}
	for _, ref := range refs {
		args = append(args, ref)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT ref, program_id, year, product, unit, forecasted_quantity, unit_price
		FROM forecast_lines WHERE program_id = ? AND year = ? AND ref IN (`+placeholders(len(refs))+`)`,
		args...,
	)
	if err != nil {
		return nil, errs.Persistence("get forecast lines", err)
	}
	defer rows.Close()

	byRef := make(map[string]*secondary.ForecastLineRecord, len(refs))
	for rows.Next() {
		l := &secondary.ForecastLineRecord{}
		if err := rows.Scan(&l.Ref, &l.ProgramID, &l.Year, &l.Product, &l.Unit, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, errs.Persistence("scan forecast line", err)
		}
		byRef[l.Ref] = l
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("get forecast lines", err)
	}

	lines := make([]*secondary.ForecastLineRecord, 0, len(refs))
	for _, ref := range refs {
		l, ok := byRef[ref]
		if !ok {
			return nil, errs.NotFound("forecast line", ref)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

var _ secondary.ReferenceRepository = (*ReferenceRepository)(nil)
