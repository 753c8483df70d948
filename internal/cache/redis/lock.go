package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// unlockTimeout bounds the release call, which runs on a fresh context.
const unlockTimeout = 5 * time.Second

// LockManager holds per-token submission locks: SET NX with a TTL, released
// only by the token that took it.
type LockManager struct {
	client *Client
	rdb    *redis.Client
	unlock *redis.Script
}

// NewLockManager creates a LockManager on c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{client: c, rdb: c.Underlying(), unlock: redis.NewScript(unlockLua)}
}

// Acquire takes key for at most ttl. The returned release func may be called
// more than once. A key held elsewhere yields domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.client.Key("lock", key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		// Report the holder's remaining time when Redis has it.
		if ttl, err := lm.rdb.PTTL(ctx, lk).Result(); err == nil && ttl > 0 {
			return nil, fmt.Errorf("redis: lock %s (expires in %s): %w", key, ttl.Round(time.Second), domain.ErrLockHeld)
		}
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	release := sync.OnceFunc(func() {
		// The caller's context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		_ = lm.unlock.Run(ctx, lm.rdb, []string{lk}, token).Err()
	})
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
