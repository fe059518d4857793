package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// keyPrefix scopes every response-cache key so tenant invalidation can
// match on a prefix without touching unrelated keys.
const keyPrefix = "sync:resp"

// ResponseCache is a keyed, TTL-bound memo of successful upstream
// responses. Failures are never cached; an expired or unreadable entry
// behaves exactly like a miss.
type ResponseCache interface {
	// Get returns the cached payload for key, or ok=false on miss.
	// Expired or corrupt entries are evicted and reported as a miss.
	Get(ctx context.Context, key string) (payload []byte, ok bool)
	// Set stores a successful payload under key for ttl
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// InvalidateTenant removes every entry scoped to one tenant,
	// independently of TTL expiry
	InvalidateTenant(ctx context.Context, tenantID int64) (int, error)
	// SweepExpired removes expired entries and returns how many it evicted
	SweepExpired(ctx context.Context) (int, error)
}

// PageKey builds the cache key for one inventory page request.
// The key describes the request semantically so equivalent calls share
// an entry; credentials never appear in keys.
func PageKey(tenantID int64, offset, pageSize int) string {
	return fmt.Sprintf("%s:%d:domains-page:%d:%d", keyPrefix, tenantID, offset, pageSize)
}

// OverviewKey builds the cache key for the tenant's upstream summary
func OverviewKey(tenantID int64) string {
	return fmt.Sprintf("%s:%d:overview", keyPrefix, tenantID)
}

func tenantPattern(tenantID int64) string {
	return fmt.Sprintf("%s:%d:*", keyPrefix, tenantID)
}

// RedisCache is the Redis-backed ResponseCache used when Redis is
// configured. Expiry is enforced server-side by Redis TTLs.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed response cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the payload for key, treating any Redis error as a miss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is an ordinary miss; anything else must not
		// propagate to the caller either
		return nil, false
	}
	return payload, true
}

// Set stores payload under key for ttl
func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// InvalidateTenant scans and deletes every key under the tenant prefix
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID int64) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, tenantPattern(tenantID), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache scan failed: %w", err)
	}
	return removed, nil
}

// SweepExpired is a no-op for Redis; expiry happens server-side
func (c *RedisCache) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}
