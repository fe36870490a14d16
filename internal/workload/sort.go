package workload

import (
	"context"
	"math/rand/v2"
	"slices"

	forkjoin "github.com/Swind/go-forkjoin-bench"
)

// sortThreshold is the slice length below which a parallel sort stops
// splitting and sorts sequentially.
const sortThreshold = 1 << 13

// RandomInts returns n pseudo-random ints drawn from a generator seeded with
// seed, so two calls with the same arguments return the same slice.
func RandomInts(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]int, n)
	for i := range out {
		out[i] = int(r.Int32())
	}
	return out
}

// SortSequential sorts a in place on the calling goroutine.
func SortSequential(a []int) {
	slices.Sort(a)
}

// SortParallel sorts a in place with a fork/join merge sort on p. It returns
// once a is sorted.
func SortParallel(ctx context.Context, p *forkjoin.Pool, a []int) error {
	if len(a) <= sortThreshold {
		slices.Sort(a)
		return nil
	}
	buf := make([]int, len(a))
	f := forkjoin.Submit(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, mergeSort(ctx, p, a, buf)
	})
	_, err := f.Join(ctx)
	return err
}

func mergeSort(ctx context.Context, p *forkjoin.Pool, a, buf []int) error {
	if len(a) <= sortThreshold {
		slices.Sort(a)
		return nil
	}
	mid := len(a) / 2
	err := forkjoin.Invoke(ctx, p,
		func(ctx context.Context) error { return mergeSort(ctx, p, a[:mid], buf[:mid]) },
		func(ctx context.Context) error { return mergeSort(ctx, p, a[mid:], buf[mid:]) },
	)
	if err != nil {
		return err
	}
	merge(a[:mid], a[mid:], buf)
	copy(a, buf)
	return nil
}

// merge writes the sorted union of left and right into out, which must hold
// len(left)+len(right) elements.
func merge(left, right, out []int) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if right[j] < left[i] {
			out[k] = right[j]
			j++
		} else {
			out[k] = left[i]
			i++
		}
		k++
	}
	k += copy(out[k:], left[i:])
	copy(out[k:], right[j:])
}
