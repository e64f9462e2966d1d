// Package metrics tracks tail-latency percentiles over a fixed-capacity
// rolling window of timing samples, feeding the diagnostics endpoint.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the sample window used when none is configured.
const DefaultCapacity = 100

// LatencyTracker keeps the most recent N duration samples in a ring buffer.
// Once full, Add overwrites the oldest sample. All methods are safe for
// concurrent use; percentile reads operate on a snapshot, so a concurrent
// Add never produces a torn sample in a computed percentile.
//
// Trackers are explicitly constructed and injected, owned by whoever wires
// up request handling; there are no ambient global instances.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker holding the most recent capacity
// samples. Non-positive capacities fall back to DefaultCapacity.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LatencyTracker{samples: make([]time.Duration, capacity)}
}

// Add records one sample, overwriting the oldest once capacity is reached.
func (t *LatencyTracker) Add(d time.Duration) {
	t.mu.Lock()
	t.samples[t.next] = d
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.full = true
	}
	t.mu.Unlock()
}

// Count returns the number of samples currently held.
func (t *LatencyTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count()
}

func (t *LatencyTracker) count() int {
	if t.full {
		return len(t.samples)
	}
	return t.next
}

// snapshot copies the live samples under the lock.
func (t *LatencyTracker) snapshot() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.count()
	out := make([]time.Duration, n)
	copy(out, t.samples[:n])
	return out
}

// Percentile returns the given percentile (0 < p <= 1) over the current
// window. The second return value is false when no samples exist; callers
// must treat that as "no data", distinct from zero latency.
func (t *LatencyTracker) Percentile(p float64) (time.Duration, bool) {
	snap := t.snapshot()
	if len(snap) == 0 {
		return 0, false
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i] < snap[j] })
	idx := int(p * float64(len(snap)))
	if idx >= len(snap) {
		idx = len(snap) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return snap[idx], true
}

// Median returns the 50th percentile of the current window.
func (t *LatencyTracker) Median() (time.Duration, bool) {
	return t.Percentile(0.5)
}

// P90 returns the 90th percentile of the current window.
func (t *LatencyTracker) P90() (time.Duration, bool) {
	return t.Percentile(0.9)
}

// P99 returns the 99th percentile of the current window.
func (t *LatencyTracker) P99() (time.Duration, bool) {
	return t.Percentile(0.99)
}
