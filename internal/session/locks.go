package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// localLocks is an in-process domain.LockManager used when no distributed
// lock is configured. Entries expire after their ttl like the Redis lock.
type localLocks struct {
	mu   sync.Mutex
	seq  uint64
	held map[string]localLock
}

type localLock struct {
	token   uint64
	expires time.Time
}

func newLocalLocks() *localLocks {
	return &localLocks{held: make(map[string]localLock)}
}

func (l *localLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockHeld)
	}
	l.seq++
	token := l.seq
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*localLocks)(nil)
