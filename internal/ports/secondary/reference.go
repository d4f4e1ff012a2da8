package secondary

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReferenceRepository reads the reference data owned by other subsystems:
// program settings, funding allocations, the organizational hierarchy, user
// roles and forecast lines. Only role assignment is written through it.
type ReferenceRepository interface {
	// GetProgramSettings returns the settings of a program year, or ErrNotFound.
	GetProgramSettings(ctx context.Context, programID string, year int) (*ProgramSettingsRecord, error)

	// ListAllocations returns the funding allocations of a program year.
	ListAllocations(ctx context.Context, programID string, year int) ([]*AllocationRecord, error)

	// GetHierarchy returns a snapshot of the facility/woreda/zone tree.
	GetHierarchy(ctx context.Context) (*HierarchyRecord, error)

	// GetUserRole returns the role assigned to a user, or ErrNotFound.
	GetUserRole(ctx context.Context, userID string) (*UserRoleRecord, error)

	// SaveUserRole creates or replaces the role assigned to a user.
	SaveUserRole(ctx context.Context, role *UserRoleRecord) error

	// GetForecastLines returns the forecast lines with the given refs in the
	// order requested. Unknown refs are an error.
	GetForecastLines(ctx context.Context, programID string, year int, refs []string) ([]*ForecastLineRecord, error)
}

// ProgramSettingsRecord holds the budget figures of a program year.
type ProgramSettingsRecord struct {
	ProgramID   string
	Year        int
	PSMPercent  decimal.Decimal
	BudgetTotal decimal.Decimal
}

// AllocationRecord is a funding source's allocation to a program year.
type AllocationRecord struct {
	ProgramID       string
	Year            int
	FundingSourceID string
	Amount          decimal.Decimal
}

// HierarchyRecord is a flattened view of the organizational tree.
// Each map is keyed by child id and holds the parent id.
type HierarchyRecord struct {
	FacilityWoreda map[string]string
	WoredaZone     map[string]string
	ZoneRegion     map[string]string
}

// UserRoleRecord is a persisted role assignment.
type UserRoleRecord struct {
	UserID     string
	Role       string
	AdminLevel string
	FacilityID string
	WoredaID   string
	ZoneID     string
	RegionID   string
}

// ForecastLineRecord is a forecast line as exposed by the forecasting subsystem.
type ForecastLineRecord struct {
	Ref       string
	ProgramID string
	Year      int
	Product   string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}
