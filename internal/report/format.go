// Package report renders benchmark results for people and for tools.
package report

import (
	"fmt"
	"time"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
	tib = 1024 * gib
)

// FormatTime renders d as minutes and seconds with millisecond precision,
// e.g. "1m2.345s". Negative durations render as zero.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	minutes := ms / 60_000
	seconds := float64(ms%60_000) / 1000
	return fmt.Sprintf("%dm%.3fs", minutes, seconds)
}

// FormatMemory renders a byte count in binary units with one decimal,
// e.g. "12.5MB".
func FormatMemory(bytes int64) string {
	b := float64(bytes)
	switch {
	case bytes < kib:
		return fmt.Sprintf("%.1fB", b)
	case bytes < mib:
		return fmt.Sprintf("%.1fKB", b/kib)
	case bytes < gib:
		return fmt.Sprintf("%.1fMB", b/mib)
	case bytes < tib:
		return fmt.Sprintf("%.1fGB", b/gib)
	default:
		return fmt.Sprintf("%.1fTB", b/tib)
	}
}
