package workload

import (
	"context"
	"fmt"
	"math/big"

	forkjoin "github.com/Swind/go-forkjoin-bench"
)

// minReduceChunk bounds how finely FactorialReduce splits its range.
const minReduceChunk = 256

var one = big.NewInt(1)

func multiply(x, y *big.Int) (*big.Int, error) {
	return new(big.Int).Mul(x, y), nil
}

func checkN(n int) error {
	if n < 0 {
		return fmt.Errorf("factorial of negative number %d", n)
	}
	return nil
}

// FactorialFutures computes n! as a balanced tree of futures over 0..n, the
// leaf 0 standing for 1. Sequentially every product is combined on the
// goroutine completing its inputs, which is the caller since all leaves are
// already complete. In parallel every product is a new task on p.
func FactorialFutures(ctx context.Context, p *forkjoin.Pool, n int, parallel bool) (*big.Int, error) {
	if err := checkN(n); err != nil {
		return nil, err
	}
	return factorialTree(p, 0, n, parallel).Join(ctx)
}

func factorialTree(p *forkjoin.Pool, from, to int, parallel bool) *forkjoin.Future[*big.Int] {
	if from == to {
		if from == 0 {
			return forkjoin.Completed(one)
		}
		return forkjoin.Completed(big.NewInt(int64(from)))
	}
	mid := int(uint(from+to) >> 1)
	a := factorialTree(p, from, mid, parallel)
	b := factorialTree(p, mid+1, to, parallel)
	if parallel {
		return forkjoin.CombineAsync(p, a, b, multiply)
	}
	return forkjoin.Combine(a, b, multiply)
}

// FactorialReduce computes n! by multiplying 1..n. Sequentially it is a
// plain left fold; in parallel the range is split into chunks, each folded
// on a worker, and the partial products are multiplied pairwise.
func FactorialReduce(ctx context.Context, p *forkjoin.Pool, n int, parallel bool) (*big.Int, error) {
	if err := checkN(n); err != nil {
		return nil, err
	}
	if !parallel || n <= minReduceChunk {
		return productRange(1, int64(n)), nil
	}

	chunk := max(n/(4*p.Parallelism()), minReduceChunk)
	f := forkjoin.Submit(ctx, p, func(ctx context.Context) (*big.Int, error) {
		return reduceRange(ctx, p, 1, int64(n), int64(chunk))
	})
	return f.Join(ctx)
}

func reduceRange(ctx context.Context, p *forkjoin.Pool, lo, hi, chunk int64) (*big.Int, error) {
	if hi-lo < chunk {
		return productRange(lo, hi), nil
	}
	mid := lo + (hi-lo)/2
	left := forkjoin.Submit(ctx, p, func(ctx context.Context) (*big.Int, error) {
		return reduceRange(ctx, p, lo, mid, chunk)
	})
	right, err := reduceRange(ctx, p, mid+1, hi, chunk)
	if err != nil {
		return nil, err
	}
	l, err := left.Join(ctx)
	if err != nil {
		return nil, err
	}
	return multiply(l, right)
}

func productRange(lo, hi int64) *big.Int {
	r := big.NewInt(1)
	var x big.Int
	for i := lo; i <= hi; i++ {
		r.Mul(r, x.SetInt64(i))
	}
	return r
}
