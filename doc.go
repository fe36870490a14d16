// Package forkjoin provides a work-stealing pool for fork/join style
// parallelism, and futures that compose results computed on it.
//
// Every worker is a goroutine locked to its own OS thread for its whole life,
// created through the pool's core.ThreadFactory. That makes the workers
// visible to per-thread accounting such as the bench package.
//
// # Quick Start
//
//	pool := forkjoin.NewPool(forkjoin.WithParallelism(4))
//	defer pool.Close()
//
//	left := forkjoin.Submit(ctx, pool, func(ctx context.Context) (int, error) {
//		return sum(a[:len(a)/2]), nil
//	})
//	right := forkjoin.Submit(ctx, pool, func(ctx context.Context) (int, error) {
//		return sum(a[len(a)/2:]), nil
//	})
//	total := forkjoin.Combine(left, right, func(l, r int) (int, error) {
//		return l + r, nil
//	})
//	v, err := total.Join(ctx)
//
// # Scheduling
//
// Tasks forked from a worker go to the bottom of that worker's deque and are
// taken back LIFO. Tasks submitted from outside the pool go to a shared FIFO
// queue. Idle workers steal from the top of other workers' deques.
//
// Future.Join on a worker first runs the tasks that worker forked itself.
// When its deque is empty it parks through Pool.Block, which starts a
// compensating worker if the pool would otherwise lose parallelism.
//
// # Common Pool
//
//	forkjoin.InitCommonPool(forkjoin.WithThreadFactory(factory))
//	defer forkjoin.ShutdownCommonPool()
//
// CommonPool panics when InitCommonPool was never called.
package forkjoin
