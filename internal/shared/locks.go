package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// MaterialReconcileLockKey builds the redis key guarding a material count.
func MaterialReconcileLockKey(business Business, materialID string) string {
	return fmt.Sprintf("inventory:%s:material:%s:reconcile", business, materialID)
}

// Locker hands out short lived distributed locks.
type Locker struct {
	client *redislock.Client
}

// NewLocker builds a Locker on top of a redis client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: redislock.New(client)}
}

// Obtain takes key for ttl without waiting. The returned func releases it.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
