package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPermKeyPrefix = "iam:perms:"

// RedisCache shares resolved permission sets across instances.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetPermissions(ctx context.Context, identityID string) ([]Permission, bool, error) {
	raw, err := c.client.Get(ctx, redisPermKeyPrefix+identityID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var perms []Permission
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, false, err
	}
	return perms, true, nil
}

func (c *RedisCache) SetPermissions(ctx context.Context, identityID string, perms []Permission, ttl time.Duration) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisPermKeyPrefix+identityID, raw, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, identityID string) error {
	return c.client.Del(ctx, redisPermKeyPrefix+identityID).Err()
}
