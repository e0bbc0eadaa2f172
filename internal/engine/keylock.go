package engine

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// KeyLocks serializes work per key while letting different keys run in
// parallel.
//
// Each key gets a one-slot channel semaphore, created lazily on first use
// and reclaimed when no goroutine holds or waits for it. Reference counts
// are only touched inside xsync's per-key Compute, so creation, reuse and
// reclamation of a handle are atomic with respect to each other.
type KeyLocks struct {
	locks *xsync.MapOf[string, *keyLock]
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyLocks creates an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: xsync.NewMapOf[string, *keyLock]()}
}

// With runs fn while holding the lock for key.
//
// Waiting for the lock honours ctx: if ctx ends first, fn is not run and
// ctx.Err() is returned.
func (l *KeyLocks) With(ctx context.Context, key string, fn func() error) error {
	h := l.retain(key)

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return ctx.Err()
	}

	defer func() {
		<-h.sem
		l.release(key)
	}()
	return fn()
}

// Len returns the number of live lock handles. Idle keys are reclaimed, so
// this is the number of keys with work in flight or queued.
func (l *KeyLocks) Len() int {
	return l.locks.Size()
}

func (l *KeyLocks) retain(key string) *keyLock {
	h, _ := l.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})
	return h
}

func (l *KeyLocks) release(key string) {
	l.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}
