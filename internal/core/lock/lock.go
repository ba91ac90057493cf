// Package lock defines short-lived processing leases keyed by a business identifier.
// A lease marks "this order is being processed" across requests and, with the
// Redis implementation, across server instances.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = errors.New("lock: not obtained")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker obtains leases without waiting: a busy key fails fast with ErrNotObtained.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	seq  uint64
	now  func() time.Time
}

type localEntry struct {
	token     uint64
	expiresAt time.Time
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// Obtain takes key for ttl. Expired leases are taken over.
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrNotObtained
	}

	l.seq++
	l.held[key] = localEntry{token: l.seq, expiresAt: now.Add(ttl)}
	return &localLease{locker: l, key: key, token: l.seq}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (le *localLease) Release(_ context.Context) error {
	le.locker.mu.Lock()
	defer le.locker.mu.Unlock()

	// A lease that expired and was taken over must not free the new holder.
	if e, ok := le.locker.held[le.key]; ok && e.token == le.token {
		delete(le.locker.held, le.key)
	}
	return nil
}
