// Package cache contains ScopeCache implementations: an in-process map for
// single-node use and a Redis-backed cache shared between instances.
package cache

import (
	"context"
	"sync"

	"github.com/example/procure/internal/ports/secondary"
)

// MemoryScopeCache implements secondary.ScopeCache with a mutex-guarded map.
type MemoryScopeCache struct {
	mu      sync.RWMutex
	entries map[string]secondary.ScopeEntry
}

// NewMemoryScopeCache creates an empty in-process scope cache.
func NewMemoryScopeCache() *MemoryScopeCache {
	return &MemoryScopeCache{entries: make(map[string]secondary.ScopeEntry)}
}

// Get returns a copy of the cached entry for a user.
func (c *MemoryScopeCache) Get(ctx context.Context, userID string) (*secondary.ScopeEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	return cloneEntry(&e), true, nil
}

// Put stores a copy of entry for a user.
func (c *MemoryScopeCache) Put(ctx context.Context, userID string, entry *secondary.ScopeEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = *cloneEntry(entry)
	return nil
}

// Invalidate removes the entry for a user.
func (c *MemoryScopeCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// Len returns the number of cached users.
func (c *MemoryScopeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneEntry(e *secondary.ScopeEntry) *secondary.ScopeEntry {
	c := *e
	if e.FacilityIDs != nil {
		c.FacilityIDs = append([]string(nil), e.FacilityIDs...)
	}
	return &c
}

var _ secondary.ScopeCache = (*MemoryScopeCache)(nil)
