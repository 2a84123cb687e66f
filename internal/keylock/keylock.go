// Package keylock provides mutual exclusion scoped to a string key.
//
// Holders of different keys never contend. Waiting for a busy key is bounded
// by a timeout and by the caller's context. Idle keys are released so the
// table only holds keys that are locked or being waited on.
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrLockTimeout is returned when a key could not be acquired within the timeout
var ErrLockTimeout = errors.New("timed out waiting for key lock")

type entry struct {
	sem  *semaphore.Weighted
	refs int // holders plus waiters
}

// KeyLock is a table of per-key binary semaphores
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty KeyLock
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

func (l *KeyLock) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyLock) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Acquire blocks until key is held, timeout elapses or ctx is done.
// A timeout <= 0 waits only on ctx. The returned release func must be called exactly once.
func (l *KeyLock) Acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error) {
	e := l.ref(key)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or awaited
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
