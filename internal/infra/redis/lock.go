// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotAcquired is returned when another holder kept the lock for the
// whole wait window.
var ErrLockNotAcquired = errors.New("redis lock not acquired")

// Locker is a SET NX PX mutex shared by every process pointed at the same
// Redis. Tokens make Unlock safe against releasing someone else's lock.
type Locker struct {
	cli     *redis.Client
	prefix  string
	retry   time.Duration
	maxWait time.Duration
}

func NewLocker(c *Client, maxWait time.Duration) *Locker {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &Locker{cli: c.cli, prefix: "lock:collection:", retry: 50 * time.Millisecond, maxWait: maxWait}
}

// TryLock polls until the lock is free, maxWait elapses or ctx ends.
// The lock expires after ttl even if the holder crashes.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.cli.SetNX(ctx, l.prefix+key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{l.prefix + key}, token).Result()
	return err
}
