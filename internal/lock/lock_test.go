// SPDX-License-Identifier: MPL-2.0

package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquire_BlocksConcurrent(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	lockA, err := l.Acquire(context.Background(), "zlib")
	if err != nil {
		t.Fatalf("Acquire A: %v", err)
	}

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		lockB, bErr := l.Acquire(context.Background(), "zlib")
		if bErr != nil {
			t.Errorf("Acquire B: %v", bErr)
			return
		}
		acquired.Store(true)
		lockB.Release()
	}()

	time.Sleep(150 * time.Millisecond)
	if acquired.Load() {
		t.Fatal("goroutine B acquired the lock while A still held it")
	}

	lockA.Release()

	select {
	case <-done:
		if !acquired.Load() {
			t.Fatal("goroutine B never acquired the lock after A released")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for goroutine B to acquire the lock")
	}
}

func TestAcquire_DistinctNamesDoNotContend(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	a, err := l.Acquire(context.Background(), "zlib")
	if err != nil {
		t.Fatalf("Acquire zlib: %v", err)
	}
	defer a.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := l.Acquire(ctx, "openssl")
	if err != nil {
		t.Fatalf("Acquire openssl: %v", err)
	}
	b.Release()
}

func TestAcquire_HonoursCancellation(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	held, err := l.Acquire(context.Background(), "zlib")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "zlib")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestAcquire_RejectsBadNames(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	for _, name := range []string{"", "..", "a/b"} {
		if _, err := l.Acquire(context.Background(), name); !errors.Is(err, ErrInvalidLockName) {
			t.Errorf("Acquire(%q) error = %v, want ErrInvalidLockName", name, err)
		}
	}
}

func TestLock_Release_Idempotent(t *testing.T) {
	t.Parallel()

	l := New(t.TempDir())
	lk, err := l.Acquire(context.Background(), "zlib")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lk.Release()
	lk.Release()

	var nilLock *Lock
	nilLock.Release()
}
