package bench

import "sync"

const defaultHistoryCapacity = 100

// History keeps the most recent run results in a fixed ring.
type History struct {
	mu    sync.Mutex
	items []Result
	head  int
	count int
}

// NewHistory creates a ring holding up to capacity results.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &History{items: make([]Result, capacity)}
}

// Add stores r, evicting the oldest result once the ring is full.
func (h *History) Add(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = r
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit results, newest first. limit <= 0 means all.
func (h *History) Recent(limit int) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]Result, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// Last returns the newest result, if any.
func (h *History) Last() (Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return Result{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// Len returns the number of stored results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
