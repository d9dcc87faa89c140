// Package sync provides the lock that serializes entry into the AML
// interpreter.
package sync

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Forever can be passed as a timeout to block until the lock becomes
// available.
const Forever time.Duration = -1

// Lock is a mutual exclusion lock whose acquisition can be bounded by a
// context or a timeout. The zero value is not usable; use NewLock.
type Lock struct {
	sem *semaphore.Weighted
}

// NewLock returns a new unlocked Lock.
func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock can be acquired or ctx is done. Any attempt
// to re-acquire a lock already held by the caller will block until ctx is
// done.
func (l *Lock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// AcquireTimeout blocks until the lock can be acquired or the timeout
// elapses. It returns false if the timeout elapsed. A timeout of Forever
// blocks until the lock is available.
func (l *Lock) AcquireTimeout(timeout time.Duration) bool {
	if timeout == Forever {
		return l.sem.Acquire(context.Background(), 1) == nil
	}

	if timeout == 0 {
		return l.sem.TryAcquire(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return l.sem.Acquire(ctx, 1) == nil
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Lock) TryToAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release relinquishes a held lock allowing other tasks to acquire it.
// Calling Release while the lock is free panics.
func (l *Lock) Release() {
	l.sem.Release(1)
}
