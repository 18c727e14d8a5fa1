package stats

import "sync/atomic"

// CounterRecorder is an in-memory Recorder that can be passed to
// WithStatsRecorder: atomic counters, a Snapshot method, a Reset method.
// A cache configured without a recorder uses NoopRecorder instead.
type CounterRecorder struct {
	hits, misses                atomic.Int64
	evictions, evictionWeight   atomic.Int64
	loadSuccesses, loadFailures atomic.Int64
	totalLoadNanos              atomic.Int64
}

// NewCounterRecorder creates a CounterRecorder with all counters at zero.
func NewCounterRecorder() *CounterRecorder { return &CounterRecorder{} }

func (c *CounterRecorder) RecordHit()  { c.hits.Add(1) }
func (c *CounterRecorder) RecordMiss() { c.misses.Add(1) }

func (c *CounterRecorder) RecordEviction(cause DeletionCause, weight int64) {
	c.evictions.Add(1)
	c.evictionWeight.Add(weight)
}

func (c *CounterRecorder) RecordLoadSuccess(loadNanos int64) {
	c.loadSuccesses.Add(1)
	c.totalLoadNanos.Add(loadNanos)
}

func (c *CounterRecorder) RecordLoadFailure(loadNanos int64) {
	c.loadFailures.Add(1)
	c.totalLoadNanos.Add(loadNanos)
}

// Snapshot returns a point-in-time read of every counter.
func (c *CounterRecorder) Snapshot() Snapshot {
	return Snapshot{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Evictions:      c.evictions.Load(),
		EvictionWeight: c.evictionWeight.Load(),
		LoadSuccesses:  c.loadSuccesses.Load(),
		LoadFailures:   c.loadFailures.Load(),
		TotalLoadNanos: c.totalLoadNanos.Load(),
	}
}

// Reset zeroes every counter.
func (c *CounterRecorder) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.evictionWeight.Store(0)
	c.loadSuccesses.Store(0)
	c.loadFailures.Store(0)
	c.totalLoadNanos.Store(0)
}

var _ Recorder = (*CounterRecorder)(nil)
