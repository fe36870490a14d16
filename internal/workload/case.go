// Package workload holds the demonstration workloads: each comes in a
// sequential and a parallel flavour so the two can be compared under the
// same accounting.
package workload

import (
	"context"
	"fmt"
	"math/big"

	forkjoin "github.com/Swind/go-forkjoin-bench"
)

// Case is one measured run.
type Case struct {
	Name string
	// Group is Name without the iteration suffix. Iterations of one
	// workload flavour share it.
	Group string
	// Setup prepares the input. It runs before the measurement starts.
	Setup func()
	Run   func() error
}

// Params sizes the workloads.
type Params struct {
	Iterations int
	SortSize   int
	Seed       uint64
	// FutureN is the argument of the futures factorial.
	FutureN int
	// ReduceN is the argument of the reduction factorial.
	ReduceN int
}

// DefaultParams mirrors the classic demo sizes, except for the sort input
// which is a tenth of the original hundred million ints.
func DefaultParams() Params {
	return Params{
		Iterations: 3,
		SortSize:   10_000_000,
		Seed:       1,
		FutureN:    2_000_000,
		ReduceN:    200_000,
	}
}

func caseName(base string, i, iterations int) string {
	if iterations <= 1 {
		return base
	}
	return fmt.Sprintf("%s%d", base, i)
}

// SortCases returns the sequential sorts followed by the parallel sorts.
// Every iteration sorts a fresh copy of the same random input.
func SortCases(p *forkjoin.Pool, params Params) []Case {
	input := RandomInts(params.SortSize, params.Seed)
	iterations := max(params.Iterations, 1)

	cases := make([]Case, 0, 2*iterations)
	for i := range iterations {
		var work []int
		cases = append(cases, Case{
			Name:  caseName("sequentialSort", i, iterations),
			Group: "sequentialSort",
			Setup: func() { work = append(work[:0], input...) },
			Run: func() error {
				SortSequential(work)
				return nil
			},
		})
	}
	for i := range iterations {
		var work []int
		cases = append(cases, Case{
			Name:  caseName("parallelSort", i, iterations),
			Group: "parallelSort",
			Setup: func() { work = append(work[:0], input...) },
			Run: func() error {
				return SortParallel(context.Background(), p, work)
			},
		})
	}
	return cases
}

// FactorialFutureCases returns the serial and parallel futures factorials,
// named futuresSequentialFactorial and futuresParallelFactorial.
func FactorialFutureCases(p *forkjoin.Pool, params Params) []Case {
	return factorialCases(params, "futures", func(parallel bool) (*big.Int, error) {
		return FactorialFutures(context.Background(), p, params.FutureN, parallel)
	})
}

// FactorialReduceCases returns the sequential and parallel reductions,
// named streamSequentialFactorial and streamParallelFactorial.
func FactorialReduceCases(p *forkjoin.Pool, params Params) []Case {
	return factorialCases(params, "stream", func(parallel bool) (*big.Int, error) {
		return FactorialReduce(context.Background(), p, params.ReduceN, parallel)
	})
}

func factorialCases(params Params, prefix string, compute func(parallel bool) (*big.Int, error)) []Case {
	iterations := max(params.Iterations, 1)
	cases := make([]Case, 0, 2*iterations)
	for _, flavour := range []struct {
		name     string
		parallel bool
	}{
		{prefix + "SequentialFactorial", false},
		{prefix + "ParallelFactorial", true},
	} {
		for i := range iterations {
			parallel := flavour.parallel
			cases = append(cases, Case{
				Name:  caseName(flavour.name, i, iterations),
				Group: flavour.name,
				Setup: func() {},
				Run: func() error {
					_, err := compute(parallel)
					return err
				},
			})
		}
	}
	return cases
}
