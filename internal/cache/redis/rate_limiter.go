package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

var slidingWindow = redis.NewScript(slidingWindowLua)

// RateLimiter counts calls per key in a sliding window held in a sorted set.
// The check and the insert run as one script, so every instance draws on the
// same budget. It limits decision-source calls and dashboard API requests.
type RateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), now: time.Now}
}

// Allow records one call under key and reports whether it fits in limit
// calls per window. A refused call is not recorded. limit <= 0 is unlimited.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	reply, err := slidingWindow.Run(ctx, rl.rdb, []string{rateLimitKey(key)},
		rl.now().UnixMicro(), window.Microseconds(), limit).Int64Slice()
	switch {
	case err != nil:
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	case len(reply) != 2:
		return false, fmt.Errorf("redis: rate limit %s: want 2 values, got %d", key, len(reply))
	}
	return reply[0] == 1, nil
}
