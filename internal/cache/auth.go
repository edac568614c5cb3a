package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laissez/laissez/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// identityCachePrefix is the Redis key prefix for verified identities.
	identityCachePrefix = "auth:identity:"
	// identityCacheTTL caps how long a verified token is trusted without re-verification.
	identityCacheTTL = 5 * time.Minute
)

type cachedIdentity struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetIdentity returns the identity cached under tokenHash.
// Returns nil on a cache miss or a corrupt entry.
func (c *Cache) GetIdentity(ctx context.Context, tokenHash string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.Identity{UserID: cached.UserID, ExpiresAt: cached.ExpiresAt}, nil
}

// SetIdentity caches a verified identity until the earlier of the token
// expiry and identityCacheTTL. Already expired identities are not stored.
func (c *Cache) SetIdentity(ctx context.Context, tokenHash string, id *model.Identity, now time.Time) error {
	ttl := identityTTL(id.ExpiresAt, now)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedIdentity{UserID: id.UserID, ExpiresAt: id.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	return c.client.Set(ctx, identityKey(tokenHash), data, ttl).Err()
}

func identityKey(tokenHash string) string {
	return identityCachePrefix + tokenHash
}

// identityTTL bounds the cache lifetime by the token expiry. A zero expiry
// means the verifier did not report one.
func identityTTL(expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return identityCacheTTL
	}
	return min(identityCacheTTL, expiresAt.Sub(now))
}
