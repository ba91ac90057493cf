package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"packcore/internal/core/lock"
)

// Locker implements lock.Locker with Redis leases shared by every instance.
type Locker struct {
	client *redislock.Client
	prefix string
}

var _ lock.Locker = (*Locker)(nil)

// NewLocker creates a Locker whose keys are namespaced by prefix.
func NewLocker(rdb *goredis.Client, prefix string) *Locker {
	return &Locker{client: redislock.New(rdb), prefix: prefix}
}

// Obtain takes key for ttl without retrying.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	lk, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, lock.ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lease %s: %w", key, err)
	}
	return &lease{lk: lk}, nil
}

type lease struct {
	lk *redislock.Lock
}

// Release frees the lease. A lease that already expired is not an error.
func (le *lease) Release(ctx context.Context) error {
	err := le.lk.Release(ctx)
	if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
