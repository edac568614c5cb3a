package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	updateSeenPrefix = "relay:update:"
	// updateSeenTTL covers the platform's redelivery window.
	updateSeenTTL = time.Hour
)

// MarkUpdateSeen records a platform update id for a bot and reports whether
// it was new. A false result means the update is a redelivery.
func (c *Cache) MarkUpdateSeen(ctx context.Context, botHash string, updateID int64) (bool, error) {
	ok, err := c.client.SetNX(ctx, updateKey(botHash, updateID), 1, updateSeenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark update seen: %w", err)
	}
	return ok, nil
}

func updateKey(botHash string, updateID int64) string {
	return updateSeenPrefix + botHash + ":" + strconv.FormatInt(updateID, 10)
}
