package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlouiLouai/educ/internal/models"
)

const roleKeyPrefix = "profile:role:"

// RoleCache is a denormalized copy of profiles.role keyed by identity id. The
// callback writes it on sign-up and whenever app metadata has drifted from the
// profile; role changes and account deletion drop it. A miss is normal: the
// gate then falls back to app metadata.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

// Get returns "" with a nil error on a cache miss.
func (c *RoleCache) Get(ctx context.Context, identityID string) (models.Role, error) {
	val, err := c.client.Get(ctx, roleKeyPrefix+identityID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return models.Role(val), nil
}

func (c *RoleCache) Set(ctx context.Context, identityID string, role models.Role) error {
	return c.client.Set(ctx, roleKeyPrefix+identityID, string(role), c.ttl).Err()
}

func (c *RoleCache) Delete(ctx context.Context, identityID string) error {
	return c.client.Del(ctx, roleKeyPrefix+identityID).Err()
}
