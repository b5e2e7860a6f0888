// Package dedup collapses concurrent calls for the same key into one.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrPanicked wraps a panic raised by a deduplicated call.
var ErrPanicked = errors.New("deduplicated call panicked")

// Group runs at most one fn per key at a time. Callers arriving while a call
// is pending wait for it and receive the same result. The pending marker is
// cleared on every exit path of fn, panics included.
type Group[T any] struct {
	flight  singleflight.Group
	timeout time.Duration

	calls  atomic.Int64
	shared atomic.Int64
}

// New returns a Group whose calls run with the given timeout. A zero timeout
// leaves the call bounded only by fn itself.
func New[T any](timeout time.Duration) *Group[T] {
	return &Group[T]{timeout: timeout}
}

// Do executes fn once per in-flight key. fn runs on a context detached from
// the first caller's cancellation and bounded by the group timeout; each
// caller can still stop waiting through its own ctx.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	ch := g.flight.DoChan(key, func() (v interface{}, err error) {
		g.calls.Add(1)
		// DoChan re-panics on a fresh goroutine; hand the panic to the waiters.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()

		callCtx := context.WithoutCancel(ctx)
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			g.shared.Add(1)
		}
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	}
}

// Forget drops the pending marker for key so the next Do starts a new call.
func (g *Group[T]) Forget(key string) {
	g.flight.Forget(key)
}

// Calls is the number of times fn actually ran.
func (g *Group[T]) Calls() int64 {
	return g.calls.Load()
}

// SharedResults is the number of results handed to more than one caller.
func (g *Group[T]) SharedResults() int64 {
	return g.shared.Load()
}
