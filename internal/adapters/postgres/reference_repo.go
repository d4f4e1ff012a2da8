package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// ReferenceRepository implements secondary.ReferenceRepository with PostgreSQL.
type ReferenceRepository struct {
	db *DB
}

// NewReferenceRepository creates a new PostgreSQL reference repository.
func NewReferenceRepository(db *DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetProgramSettings returns the settings of a program year, or ErrNotFound.
func (r *ReferenceRepository) GetProgramSettings(ctx context.Context, programID string, year int) (*secondary.ProgramSettingsRecord, error) {
	var nums [2]string
	record := &secondary.ProgramSettingsRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT program_id, year, psm_percent::text, budget_total::text
		FROM program_settings WHERE program_id = $1 AND year = $2`,
		programID, year,
	).Scan(&record.ProgramID, &record.Year, &nums[0], &nums[1])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("program settings", fmt.Sprintf("%s/%d", programID, year))
	}
	if err != nil {
		return nil, errs.Persistence("get program settings", err)
	}
	if err := parseDecimals(nums[:], &record.PSMPercent, &record.BudgetTotal); err != nil {
		return nil, errs.Persistence("get program settings", err)
	}
	return record, nil
}

// ListAllocations returns the funding allocations of a program year.
func (r *ReferenceRepository) ListAllocations(ctx context.Context, programID string, year int) ([]*secondary.AllocationRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT program_id, year, funding_source_id, allocated_amount::text
		FROM funding_allocations WHERE program_id = $1 AND year = $2
		ORDER BY funding_source_id`,
		programID, year,
	)
	if err != nil {
		return nil, errs.Persistence("list allocations", err)
	}
	defer rows.Close()

	var allocations []*secondary.AllocationRecord
	for rows.Next() {
		var amount [1]string
		a := &secondary.AllocationRecord{}
		if err := rows.Scan(&a.ProgramID, &a.Year, &a.FundingSourceID, &amount[0]); err != nil {
			return nil, errs.Persistence("scan allocation", err)
		}
		if err := parseDecimals(amount[:], &a.Amount); err != nil {
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
	rows, err := r.db.Pool.Query(ctx, query)
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
	record := &secondary.UserRoleRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, role, admin_level, COALESCE(facility_id, ''), COALESCE(woreda_id, ''),
		       COALESCE(zone_id, ''), COALESCE(region_id, '')
		FROM user_roles WHERE user_id = $1`,
		userID,
	).Scan(&record.UserID, &record.Role, &record.AdminLevel, &record.FacilityID, &record.WoredaID,
		&record.ZoneID, &record.RegionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("user role", userID)
	}
	if err != nil {
		return nil, errs.Persistence("get user role", err)
	}
	return record, nil
}

// SaveUserRole creates or replaces the role assigned to a user.
func (r *ReferenceRepository) SaveUserRole(ctx context.Context, role *secondary.UserRoleRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role, admin_level, facility_id, woreda_id, zone_id, region_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
		    role = EXCLUDED.role,
		    admin_level = EXCLUDED.admin_level,
		    facility_id = EXCLUDED.facility_id,
		    woreda_id = EXCLUDED.woreda_id,
		    zone_id = EXCLUDED.zone_id,
		    region_id = EXCLUDED.region_id,
		    updated_at = EXCLUDED.updated_at`,
		role.UserID, role.Role, role.AdminLevel, nullable(role.FacilityID), nullable(role.WoredaID),
		nullable(role.ZoneID), nullable(role.RegionID),
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

	rows, err := r.db.Pool.Query(ctx, `
		SELECT ref, program_id, year, product, unit, forecasted_quantity::text, unit_price::text
		FROM forecast_lines
		WHERE program_id = $1 AND year = $2 AND ref = ANY($3)`,
		programID, year, refs,
	)
	if err != nil {
		return nil, errs.Persistence("get forecast lines", err)
	}
	defer rows.Close()

	byRef := make(map[string]*secondary.ForecastLineRecord, len(refs))
	for rows.Next() {
		var nums [2]string
		l := &secondary.ForecastLineRecord{}
		if err := rows.Scan(&l.Ref, &l.ProgramID, &l.Year, &l.Product, &l.Unit, &nums[0], &nums[1]); err != nil {
			return nil, errs.Persistence("scan forecast line", err)
		}
		if err := parseDecimals(nums[:], &l.Quantity, &l.UnitPrice); err != nil {
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
