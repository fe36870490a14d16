package bench

import (
	"runtime/metrics"
)

const heapAllocsMetric = "/gc/heap/allocs:bytes"

// AllocatedBytes counts heap bytes allocated.
//
// The Go runtime keeps no per-thread allocation counter, so the process-wide
// cumulative counter is charged to the caller entry and every worker reads 0.
// Summed over a registry this yields the bytes the whole process allocated
// during the run, whichever thread allocated them.
//
// The runtime only folds an allocation into the counter when the per-P cache
// holding it is flushed, so runs allocating less than a few cache spans may
// report 0.
type AllocatedBytes struct{}

func (AllocatedBytes) Name() string { return "alloc" }
func (AllocatedBytes) Unit() Unit   { return UnitBytes }

func (AllocatedBytes) Read(t Thread) (int64, error) {
	if !t.Caller {
		return 0, nil
	}
	return heapAllocated(), nil
}

func heapAllocated() int64 {
	sample := []metrics.Sample{{Name: heapAllocsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(sample[0].Value.Uint64())
}
