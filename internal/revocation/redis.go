package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gatekeeper:revoked:"

// RedisCache mirrors revocations into Redis with a TTL equal to the
// remaining token lifetime. Only a hit is authoritative; a miss defers to
// the Store, so entries lost in a failed write or a Redis flush still count.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, cacheKey(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("caching revocation: %w", err)
	}
	return nil
}

func (c *RedisCache) IsRevoked(ctx context.Context, id string) (bool, bool, error) {
	n, err := c.client.Exists(ctx, cacheKey(id)).Result()
	if err != nil {
		return false, false, fmt.Errorf("checking cached revocation: %w", err)
	}
	return n > 0, n > 0, nil
}

func cacheKey(id string) string {
	return keyPrefix + id
}
