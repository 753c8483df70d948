package domain

import (
	"context"
	"time"
)

// Signal bus channels.
const (
	ChannelToast         = "ch:toast"
	ChannelRevalidate    = "ch:revalidate"
	ChannelListingAll    = "ch:listing:*"
	channelListingPrefix = "ch:listing:"
)

// ListingChannel is the channel carrying state snapshots of one wizard
// session.
func ListingChannel(sessionID string) string {
	return channelListingPrefix + sessionID
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of wizard events and toasts.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until a slot frees up. Zero when unknown.
	RetryAfter time.Duration
}

// RateLimiter decides whether a keyed request fits within limit per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}
