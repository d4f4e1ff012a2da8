package secondary

import "context"

// ScopeCache stores resolved scopes per user. Entries do not expire on a
// timer; they are replaced when the role fingerprint changes and dropped on
// Invalidate.
type ScopeCache interface {
	// Get returns the cached entry for a user. The bool is false on a miss.
	Get(ctx context.Context, userID string) (*ScopeEntry, bool, error)

	// Put stores the entry for a user, replacing any previous one.
	Put(ctx context.Context, userID string, entry *ScopeEntry) error

	// Invalidate removes the entry for a user.
	Invalidate(ctx context.Context, userID string) error
}

// ScopeEntry is a resolved scope tagged with the role fingerprint it was
// computed from.
type ScopeEntry struct {
	Fingerprint string   `json:"fingerprint"`
	Level       string   `json:"level"`
	RootID      string   `json:"root_id"`
	Wildcard    bool     `json:"wildcard"`
	FacilityIDs []string `json:"facility_ids"`
}
