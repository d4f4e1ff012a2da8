package scope

import "fmt"

// Action is an operation a user attempts on a procurement request.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionSubmit   Action = "submit"
	ActionReopen   Action = "reopen"
	ActionApprove  Action = "approve"
	ActionReturn   Action = "return"
	ActionProcure  Action = "procure"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"

	// ActionAdminister covers operator work outside any single request:
	// role reassignment and totals reconciliation.
	ActionAdminister Action = "administer"
)

// AllActions lists every action in the matrix.
var AllActions = []Action{
	ActionView, ActionCreate, ActionEdit, ActionSubmit, ActionReopen,
	ActionApprove, ActionReturn, ActionProcure, ActionComplete, ActionCancel,
	ActionAdminister,
}

// reviewActions may only be taken from a level strictly above facility.
var reviewActions = map[Action]bool{
	ActionApprove:  true,
	ActionReturn:   true,
	ActionProcure:  true,
	ActionComplete: true,
	ActionCancel:   true,
}

// ownerActions are restricted to the request owner at facility level.
var ownerActions = map[Action]bool{
	ActionEdit:   true,
	ActionSubmit: true,
	ActionReopen: true,
}

type permissionKey struct {
	level  AdminLevel
	role   Role
	action Action
}

type grant struct {
	levels  []AdminLevel
	role    Role
	actions []Action
}

var matrix = buildMatrix([]grant{
	{
		levels:  []AdminLevel{LevelFacility},
		role:    RoleRequester,
		actions: []Action{ActionView, ActionCreate, ActionEdit, ActionSubmit, ActionReopen},
	},
	{
		levels:  []AdminLevel{LevelWoreda, LevelZone, LevelRegional, LevelNational},
		role:    RoleReviewer,
		actions: []Action{ActionView, ActionApprove, ActionReturn},
	},
	{
		levels:  []AdminLevel{LevelRegional, LevelNational},
		role:    RoleProcurementOfficer,
		actions: []Action{ActionView, ActionProcure, ActionComplete, ActionCancel},
	},
	{
		levels:  []AdminLevel{LevelNational},
		role:    RoleAdmin,
		actions: AllActions,
	},
})

func buildMatrix(grants []grant) map[permissionKey]bool {
	m := make(map[permissionKey]bool)
	for _, g := range grants {
		for _, l := range g.levels {
			for _, a := range g.actions {
				m[permissionKey{level: l, role: g.role, action: a}] = true
			}
		}
	}
	return m
}

// Permits reports whether the matrix grants action to role at level.
func Permits(level AdminLevel, role Role, action Action) bool {
	return matrix[permissionKey{level: level, role: role, action: action}]
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// ActContext provides the context needed to authorize an action on a request.
type ActContext struct {
	Role       *UserRole
	Scope      Scope
	Action     Action
	FacilityID string // Facility the request belongs to
	OwnerID    string // Request owner; empty when creating
}

// CanAct evaluates whether the user may take the action on a request.
// Rules:
// - A user without a role can do nothing
// - The request's facility must be inside the user's scope
// - The (level, role, action) triple must be granted by the matrix
// - Review actions need a level strictly above facility
// - Facility-level owners alone may edit, submit or reopen their requests
func CanAct(ctx ActContext) GuardResult {
	if ctx.Role == nil {
		return deny("user has no role assignment")
	}
	if !ctx.Scope.Contains(ctx.FacilityID) {
		return deny("facility %s is outside the %s scope of %s", ctx.FacilityID, ctx.Role.Level, ctx.Role.UserID)
	}
	if !Permits(ctx.Role.Level, ctx.Role.Role, ctx.Action) {
		return deny("role %s at %s level may not %s", ctx.Role.Role, ctx.Role.Level, ctx.Action)
	}
	if reviewActions[ctx.Action] && !ctx.Role.Level.Above(LevelFacility) {
		return deny("%s requires a scope above facility level", ctx.Action)
	}
	if ownerActions[ctx.Action] && ctx.Role.Level == LevelFacility && ctx.OwnerID != "" && ctx.OwnerID != ctx.Role.UserID {
		return deny("only the owner %s may %s this request", ctx.OwnerID, ctx.Action)
	}
	return GuardResult{Allowed: true}
}

// CanAdminister evaluates whether the user may run operator commands.
// Only roles the matrix grants ActionAdminister qualify; no facility is involved.
func CanAdminister(role *UserRole) GuardResult {
	if role == nil {
		return deny("user has no role assignment")
	}
	if !Permits(role.Level, role.Role, ActionAdminister) {
		return deny("role %s at %s level may not %s", role.Role, role.Level, ActionAdminister)
	}
	return GuardResult{Allowed: true}
}
