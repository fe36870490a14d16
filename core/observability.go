package core

// PoolStats represents runtime observability state for a work-stealing pool.
type PoolStats struct {
	ID          string
	Parallelism int
	Workers     int // threads created so far, never decreases while open
	Idle        int
	Blocked     int // workers parked in a managed block
	Queued      int
	Active      int
	Steals      int64
	Running     bool
}
