package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc adds one.
func (c *Counter) Inc() {
	if !enabled {
		return
	}
	c.n.Add(1)
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Reset sets the count to zero.
func (c *Counter) Reset() { c.n.Store(0) }

// Global counters.
var (
	Reloads       = newCounter("reloads")
	ReloadErrors  = newCounter("reload_errors")
	SkippedRows   = newCounter("skipped_rows")
	RequestErrors = newCounter("request_errors")
)

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{Reloads, ReloadErrors, SkippedRows, RequestErrors}
}

// CounterValues returns counter values keyed by name.
func CounterValues() map[string]int64 {
	out := make(map[string]int64, len(AllCounters()))
	for _, c := range AllCounters() {
		out[c.name] = c.Value()
	}
	return out
}

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	Enabled  bool             `json:"enabled"`
	Timings  []TimingStats    `json:"timings"`
	Counters map[string]int64 `json:"counters"`
}

// Collect gathers every metric into a Snapshot.
func Collect() Snapshot {
	return Snapshot{Enabled: enabled, Timings: AllTimingStats(), Counters: CounterValues()}
}
