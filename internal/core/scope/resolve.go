package scope

import "sort"

// Facility is a leaf unit; every facility belongs to one woreda.
type Facility struct {
	ID       string
	WoredaID string
}

// Woreda belongs to one zone.
type Woreda struct {
	ID     string
	ZoneID string
}

// Zone belongs to one region.
type Zone struct {
	ID       string
	RegionID string
}

// Hierarchy is a read-only snapshot of the organizational tree.
type Hierarchy struct {
	Facilities []Facility
	Woredas    []Woreda
	Zones      []Zone
}

// Scope is the set of facilities a user may see or act on.
// FacilityIDs is sorted; it is ignored when Wildcard is set.
type Scope struct {
	Level       AdminLevel `json:"level"`
	RootID      string     `json:"root_id"`
	Wildcard    bool       `json:"wildcard"`
	FacilityIDs []string   `json:"facility_ids"`
}

// Empty returns the scope that authorizes nothing.
func Empty() Scope {
	return Scope{Level: LevelNone}
}

// IsEmpty reports whether the scope authorizes no facility at all.
func (s Scope) IsEmpty() bool {
	return !s.Wildcard && len(s.FacilityIDs) == 0
}

// Contains reports whether facilityID is inside the scope.
func (s Scope) Contains(facilityID string) bool {
	if facilityID == "" {
		return false
	}
	if s.Wildcard {
		return true
	}
	i := sort.SearchStrings(s.FacilityIDs, facilityID)
	return i < len(s.FacilityIDs) && s.FacilityIDs[i] == facilityID
}

// Resolve computes the scope authorized by role over the hierarchy snapshot.
// A nil role, or a role whose unit is not in the hierarchy, resolves to the
// empty scope.
func Resolve(role *UserRole, h Hierarchy) Scope {
	if role == nil || role.Validate() != nil {
		return Empty()
	}

	root := role.ScopeID()
	out := Scope{Level: role.Level, RootID: root}

	switch role.Level {
	case LevelNational:
		out.Wildcard = true
		return out
	case LevelFacility:
		for _, f := range h.Facilities {
			if f.ID == root {
				out.FacilityIDs = []string{root}
				break
			}
		}
		return out
	}

	woredas := woredasUnder(role.Level, root, h)
	for _, f := range h.Facilities {
		if _, ok := woredas[f.WoredaID]; ok {
			out.FacilityIDs = append(out.FacilityIDs, f.ID)
		}
	}
	sort.Strings(out.FacilityIDs)
	return out
}

// woredasUnder returns the woreda ids reachable from a woreda, zone or region.
func woredasUnder(level AdminLevel, root string, h Hierarchy) map[string]struct{} {
	set := make(map[string]struct{})

	if level == LevelWoreda {
		set[root] = struct{}{}
		return set
	}

	zones := make(map[string]struct{})
	switch level {
	case LevelZone:
		zones[root] = struct{}{}
	case LevelRegional:
		for _, z := range h.Zones {
			if z.RegionID == root {
				zones[z.ID] = struct{}{}
			}
		}
	}

	for _, w := range h.Woredas {
		if _, ok := zones[w.ZoneID]; ok {
			set[w.ID] = struct{}{}
		}
	}
	return set
}
