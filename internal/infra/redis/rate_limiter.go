package redis

import (
	"context"
	"fmt"
	"time"
)

// FloodLimiter is a fixed-window message counter protecting the bot from
// chat spam. It is unrelated to the payment cooldowns, which live in the ledger.
type FloodLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
}

func NewFloodLimiter(client RedisClient, limit int, window time.Duration) *FloodLimiter {
	return &FloodLimiter{client: client, limit: limit, window: window}
}

func (r *FloodLimiter) Allow(ctx context.Context, userID int64, command string) (bool, error) {
	key := UserCommandKey(userID, command)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}

func UserCommandKey(userID int64, command string) string {
	return fmt.Sprintf("flood:%d:%s", userID, command)
}
