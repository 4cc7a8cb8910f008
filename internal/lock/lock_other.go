// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package lock

import (
	"context"
	"sync"
)

// Without flock the lock only serialises goroutines of this process.
var held sync.Map

// Lock is an in-process lock keyed by lock file path.
type Lock struct {
	ch chan struct{}
}

// Acquire blocks until the named lock is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	lockPath, err := l.path(name)
	if err != nil {
		return nil, err
	}
	v, _ := held.LoadOrStore(lockPath, make(chan struct{}, 1))
	ch := v.(chan struct{})
	select {
	case ch <- struct{}{}:
		return &Lock{ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release unlocks. Safe to call more than once.
func (l *Lock) Release() {
	if l == nil || l.ch == nil {
		return
	}
	<-l.ch
	l.ch = nil
}
