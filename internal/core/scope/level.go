// Package scope contains the pure business logic for organizational scope
// resolution and authorization. This is part of the Functional Core - no I/O,
// only pure functions over hierarchy snapshots.
package scope

import (
	"fmt"
	"strings"
)

// AdminLevel is the hierarchy tier a role is anchored at.
type AdminLevel int

const (
	LevelNone AdminLevel = iota
	LevelFacility
	LevelWoreda
	LevelZone
	LevelRegional
	LevelNational
)

var levelNames = map[AdminLevel]string{
	LevelNone:     "none",
	LevelFacility: "facility",
	LevelWoreda:   "woreda",
	LevelZone:     "zone",
	LevelRegional: "regional",
	LevelNational: "national",
}

// String returns the persisted name of the level.
func (l AdminLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("AdminLevel(%d)", int(l))
}

// Above reports whether l sits strictly higher in the hierarchy than other.
func (l AdminLevel) Above(other AdminLevel) bool {
	return l > other
}

// ParseAdminLevel converts a persisted level name into an AdminLevel.
// "region" is accepted as an alias of "regional".
func ParseAdminLevel(s string) (AdminLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "facility":
		return LevelFacility, nil
	case "woreda":
		return LevelWoreda, nil
	case "zone":
		return LevelZone, nil
	case "regional", "region":
		return LevelRegional, nil
	case "national":
		return LevelNational, nil
	}
	return LevelNone, fmt.Errorf("unknown admin level %q", s)
}

// Role is the functional role a user holds at their level.
type Role string

const (
	RoleRequester          Role = "requester"
	RoleReviewer           Role = "reviewer"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleAdmin              Role = "admin"
)

// ParseRole validates a persisted role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleRequester, RoleReviewer, RoleProcurementOfficer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// UserRole assigns a user a role anchored at exactly one organizational unit.
// National roles carry no unit id.
type UserRole struct {
	UserID     string
	Role       Role
	Level      AdminLevel
	FacilityID string
	WoredaID   string
	ZoneID     string
	RegionID   string
}

// ScopeID returns the unit id matching the role's level.
func (r UserRole) ScopeID() string {
	switch r.Level {
	case LevelFacility:
		return r.FacilityID
	case LevelWoreda:
		return r.WoredaID
	case LevelZone:
		return r.ZoneID
	case LevelRegional:
		return r.RegionID
	}
	return ""
}

// Validate checks that exactly the unit id for the role's level is populated.
func (r UserRole) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if r.Role == "" {
		return fmt.Errorf("role is required")
	}
	set := 0
	for _, id := range []string{r.FacilityID, r.WoredaID, r.ZoneID, r.RegionID} {
		if id != "" {
			set++
		}
	}
	switch r.Level {
	case LevelNational:
		if set != 0 {
			return fmt.Errorf("national role must not carry a unit id")
		}
	case LevelFacility, LevelWoreda, LevelZone, LevelRegional:
		if set != 1 || r.ScopeID() == "" {
			return fmt.Errorf("%s role must carry exactly one %s id", r.Level, r.Level)
		}
	default:
		return fmt.Errorf("role has no admin level")
	}
	return nil
}

// Fingerprint identifies the assignment. A cached scope is only valid for the
// fingerprint it was computed from.
func (r UserRole) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s", r.Role, r.Level, r.ScopeID())
}
