package circuit

import (
	"context"
	"errors"
	"fmt"
)

// Execute runs fn under b and never fails: when the breaker rejects the call,
// or fn returns an error, panics or outlives the breaker timeout, the value
// produced by fallback is returned instead. fallback receives the reason.
//
// fn runs on its own goroutine so a dependency that ignores its context cannot
// hold the caller past the deadline; a late result is discarded.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error), fallback func(error) T) T {
	if !b.Allow() {
		return fallback(ErrOpen)
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if b.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		val, err := fn(callCtx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return fail(ctx, b, out.err, fallback)
		}
		b.RecordSuccess()
		return out.val
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
		}
		return fail(ctx, b, err, fallback)
	}
}

// fail records a dependency failure unless the caller itself gave up, in which
// case the admission is released without blaming the dependency.
func fail[T any](ctx context.Context, b *Breaker, err error, fallback func(error) T) T {
	if ctx.Err() != nil {
		b.release()
		return fallback(err)
	}
	b.RecordFailure()
	return fallback(err)
}
