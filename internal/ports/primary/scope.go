package primary

import "context"

// ScopeService defines the primary port for organizational scope and
// authorization.
type ScopeService interface {
	// ResolveScope returns the facilities a user may see or act on.
	// A user without a role gets an empty scope, not an error.
	ResolveScope(ctx context.Context, userID string) (*Scope, error)

	// CanAct returns nil when the user may take action on the request,
	// or a PermissionDeniedError naming the rule that failed.
	CanAct(ctx context.Context, userID, requestID, action string) error

	// ReassignRole replaces a user's role and drops their cached scope.
	ReassignRole(ctx context.Context, req AssignRoleRequest) error

	// VisibleRequests lists the requests whose facility lies in the user's scope.
	VisibleRequests(ctx context.Context, userID string, filters RequestFilters) ([]*Request, error)
}

// Scope represents a resolved scope at the port boundary.
type Scope struct {
	UserID      string
	Level       string
	RootID      string
	Wildcard    bool
	FacilityIDs []string
}

// AssignRoleRequest contains parameters for assigning a role.
// Exactly the unit id matching AdminLevel must be set; none for national.
type AssignRoleRequest struct {
	ActorID    string // Must be a national admin
	UserID     string
	Role       string
	AdminLevel string
	FacilityID string
	WoredaID   string
	ZoneID     string
	RegionID   string
}
