// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"sync"
)

type (
	// flight deduplicates concurrent installs of the same keg. The shared
	// install is detached from every caller's context and is canceled only
	// once all of its waiters have gone.
	flight struct {
		mu    sync.Mutex
		calls map[string]*flightCall
	}

	flightCall struct {
		done    chan struct{}
		cancel  context.CancelFunc
		waiters int
		res     *Result
		err     error
	}
)

// do runs fn once per key among overlapping callers. shared reports whether
// the caller joined a call another caller started.
//
// A caller whose ctx ends while others still wait returns ctx.Err() at
// once. The last waiter to leave cancels the call and waits for fn to
// return, so teardown has finished when do returns.
func (f *flight) do(ctx context.Context, key string, fn func(context.Context) (*Result, error)) (res *Result, err error, shared bool) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]*flightCall)
	}
	c, shared := f.calls[key]
	if !shared {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &flightCall{done: make(chan struct{}), cancel: cancel}
		f.calls[key] = c
		go func() {
			defer cancel()
			c.res, c.err = fn(cctx)
			f.mu.Lock()
			if f.calls[key] == c {
				delete(f.calls, key)
			}
			f.mu.Unlock()
			close(c.done)
		}()
	}
	c.waiters++
	f.mu.Unlock()

	select {
	case <-c.done:
		f.leave(key, c)
		return c.res, c.err, shared
	case <-ctx.Done():
	}

	if last := f.leave(key, c); !last {
		return nil, ctx.Err(), shared
	}
	<-c.done
	return c.res, c.err, shared
}

// leave drops one waiter and reports whether it was the last. The last
// waiter cancels the call and unpublishes it, so later callers start fresh.
func (f *flight) leave(key string, c *flightCall) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return false
	}
	c.cancel()
	if f.calls[key] == c {
		delete(f.calls, key)
	}
	return true
}
