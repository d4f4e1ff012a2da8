package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/procure/internal/ports/secondary"
)

const scopeKeyPrefix = "procure:scope:"

// RedisScopeCache implements secondary.ScopeCache on Redis so every instance
// sees the same invalidations. Entries are JSON encoded.
type RedisScopeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisScopeCache wraps client. A zero ttl keeps entries until invalidated.
func NewRedisScopeCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisScopeCache {
	return &RedisScopeCache{client: client, ttl: ttl, logger: logger}
}

func scopeKey(userID string) string {
	return scopeKeyPrefix + userID
}

// Get returns the cached entry for a user. Undecodable entries count as a miss.
func (c *RedisScopeCache) Get(ctx context.Context, userID string) (*secondary.ScopeEntry, bool, error) {
	raw, err := c.client.Get(ctx, scopeKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get scope: %w", err)
	}

	var entry secondary.ScopeEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding undecodable scope cache entry")
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores the entry for a user.
func (c *RedisScopeCache) Put(ctx context.Context, userID string, entry *secondary.ScopeEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode scope entry: %w", err)
	}
	if err := c.client.Set(ctx, scopeKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set scope: %w", err)
	}
	return nil
}

// Invalidate removes the entry for a user.
func (c *RedisScopeCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, scopeKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del scope: %w", err)
	}
	return nil
}

var _ secondary.ScopeCache = (*RedisScopeCache)(nil)
