package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter implements domain.RateLimiter using a sliding window kept in
// a Redis sorted set and updated by an atomic Lua script. The HTTP server
// uses it to limit requests per client IP.
type RateLimiter struct {
	client        *Client
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		client:        c,
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

// Allow counts a request for key against a sliding window of length window
// and reports whether it fits within limit. A non-positive limit or window
// allows everything without touching Redis.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit <= 0 || window <= 0 {
		return domain.RateDecision{Allowed: true, Remaining: limit}, nil
	}

	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rl.client.Key("ratelimit", key)},
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(result) < 3 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: unexpected result length %d", key, len(result))
	}
	return decide(result, limit), nil
}

// decide converts the script reply {allowed, count, waitMicros}.
func decide(result []int64, limit int) domain.RateDecision {
	d := domain.RateDecision{
		Allowed:   result[0] == 1,
		Remaining: max(limit-int(result[1]), 0),
	}
	if !d.Allowed && result[2] > 0 {
		d.RetryAfter = time.Duration(result[2]) * time.Microsecond
	}
	return d
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
