package forkjoin

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-forkjoin-bench/core"
)

// Future is the result of a computation that may still be running on a pool.
type Future[T any] struct {
	pool *Pool
	done chan struct{}

	mu        sync.Mutex
	completed bool
	callbacks []func()

	value T
	err   error
}

func newFuture[T any](p *Pool) *Future[T] {
	return &Future[T]{pool: p, done: make(chan struct{})}
}

// Completed returns a future that already holds v.
func Completed[T any](v T) *Future[T] {
	f := newFuture[T](nil)
	f.complete(v, nil)
	return f
}

// Submit runs fn as a task of p. Submitted from inside one of p's tasks, the
// work is forked onto the current worker's deque.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T](p)
	err := p.post(ctx, func(ctx context.Context) {
		f.run(ctx, fn)
	})
	if err != nil {
		var zero T
		f.complete(zero, err)
	}
	return f
}

// Done is closed once the future holds a value or an error.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Join waits for the result. On a pool worker the wait helps with the
// worker's own forked tasks first and then counts as a managed block, so the
// pool may start another thread to keep its parallelism.
//
// A panic inside the computation is returned as *core.PanicError.
func (f *Future[T]) Join(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	default:
		if f.pool != nil {
			f.pool.awaitDone(ctx, f.done)
		} else {
			<-f.done
		}
	}
	return f.value, f.err
}

func (f *Future[T]) run(ctx context.Context, fn func(ctx context.Context) (T, error)) {
	f.complete(guarded(f.pool, func() (T, error) { return fn(ctx) }))
}

// guarded calls fn and turns a panic into a *core.PanicError. Callers
// complete their future outside of it.
func guarded[T any](p *Pool, fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if p != nil {
				p.metrics.RecordTaskPanic(p.id, r)
			}
			var zero T
			v, err = zero, &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.value, f.err = v, err
	f.completed = true
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	for _, cb := range callbacks {
		cb()
	}
}

// onComplete runs cb once the future completes, immediately if it already has.
func (f *Future[T]) onComplete(cb func()) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		cb()
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Combine returns a future for fn(a, b). fn runs on whichever goroutine
// completes the second input. The first error of a or b wins. A panic in fn
// completes the result with a *core.PanicError.
func Combine[A, B, C any](a *Future[A], b *Future[B], fn func(A, B) (C, error)) *Future[C] {
	out := newFuture[C](firstPool(a.pool, b.pool))
	whenBoth(a, b, func() {
		out.complete(guarded(out.pool, func() (C, error) { return combine(a, b, fn) }))
	})
	return out
}

// CombineAsync is like Combine but fn runs as a new task on p.
func CombineAsync[A, B, C any](p *Pool, a *Future[A], b *Future[B], fn func(A, B) (C, error)) *Future[C] {
	out := newFuture[C](p)
	whenBoth(a, b, func() {
		err := p.post(context.Background(), func(ctx context.Context) {
			out.run(ctx, func(context.Context) (C, error) {
				return combine(a, b, fn)
			})
		})
		if err != nil {
			var zero C
			out.complete(zero, err)
		}
	})
	return out
}

// Invoke runs every fn on p and waits for all of them. The first fn runs on
// the caller; the rest are forked. Errors are joined.
func Invoke(ctx context.Context, p *Pool, fns ...func(ctx context.Context) error) error {
	if len(fns) == 0 {
		return nil
	}
	forked := make([]*Future[struct{}], 0, len(fns)-1)
	for _, fn := range fns[1:] {
		forked = append(forked, Submit(ctx, p, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		}))
	}

	errs := []error{fns[0](ctx)}
	for i := len(forked) - 1; i >= 0; i-- {
		_, err := forked[i].Join(ctx)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func combine[A, B, C any](a *Future[A], b *Future[B], fn func(A, B) (C, error)) (C, error) {
	var zero C
	if a.err != nil {
		return zero, a.err
	}
	if b.err != nil {
		return zero, b.err
	}
	return fn(a.value, b.value)
}

func whenBoth[A, B any](a *Future[A], b *Future[B], fn func()) {
	var pending atomic.Int32
	pending.Store(2)
	arrive := func() {
		if pending.Add(-1) == 0 {
			fn()
		}
	}
	a.onComplete(arrive)
	b.onComplete(arrive)
}

func firstPool(pools ...*Pool) *Pool {
	for _, p := range pools {
		if p != nil {
			return p
		}
	}
	return nil
}
