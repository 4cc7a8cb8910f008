// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestFlight_LastWaiterCancelsAndLaterCallersStartFresh(t *testing.T) {
	t.Parallel()

	var f flight
	var runs atomic.Int32
	started := make(chan struct{})
	blocked := func(ctx context.Context) (*Result, error) {
		runs.Add(1)
		close(started)
		<-ctx.Done()
		return &Result{Formula: "tool", Status: StatusFailed}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		<-started
		cancel()
	}()
	res, err, shared := f.do(ctx, "tool@1.0", blocked)
	if !errors.Is(err, context.Canceled) || shared {
		t.Fatalf("do() = %v, shared %v; want context.Canceled from the call", err, shared)
	}
	if res == nil {
		t.Fatal("last waiter should receive the call's own result")
	}

	res, err, shared = f.do(t.Context(), "tool@1.0", func(context.Context) (*Result, error) {
		runs.Add(1)
		return &Result{Formula: "tool", Status: StatusInstalled}, nil
	})
	if err != nil || shared || res.Status != StatusInstalled {
		t.Fatalf("later do() = %+v, %v, shared %v; want a fresh successful call", res, err, shared)
	}
	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}
