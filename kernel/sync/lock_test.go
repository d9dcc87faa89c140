package sync

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLock(t *testing.T) {
	var (
		l          = NewLock()
		wg         sync.WaitGroup
		numWorkers = 10
	)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	if l.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("[worker %d] unexpected error: %v", worker, err)
				return
			}
			l.Release()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	l.Release()
	wg.Wait()
}

func TestLockTimeout(t *testing.T) {
	l := NewLock()

	if !l.AcquireTimeout(Forever) {
		t.Fatal("expected acquiring a free lock to succeed")
	}

	if l.AcquireTimeout(0) {
		t.Fatal("expected a zero timeout to fail while the lock is held")
	}

	start := time.Now()
	if l.AcquireTimeout(20 * time.Millisecond) {
		t.Fatal("expected timed acquire to fail while the lock is held")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected AcquireTimeout to block for at least the timeout; blocked for %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected Acquire with a cancelled context to fail")
	}

	l.Release()
	if !l.TryToAcquire() {
		t.Fatal("expected TryToAcquire to succeed after Release")
	}
	l.Release()
}
