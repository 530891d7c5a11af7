package metrics

import (
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)
	if m.Count() != 2 {
		t.Fatalf("Count=%d; want 2", m.Count())
	}
	s := m.Stats()
	if s.AvgMs != 3 || s.MaxMs != 4 || s.MinMs != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
	m.Reset()
	if m.Count() != 0 || m.MinNs() != 0 {
		t.Fatalf("reset did not clear metric")
	}
}

func TestTimer_DisabledIsNoop(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)
	m := newTimingMetric("off")
	Timer(m)()
	if m.Count() != 0 {
		t.Fatalf("disabled timer recorded")
	}
}

func TestTimerWithCallback(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("cb")
	var got time.Duration
	TimerWithCallback(m, func(d time.Duration) { got = d })()
	if m.Count() != 1 || got < 0 {
		t.Fatalf("callback timer did not record: count=%d d=%v", m.Count(), got)
	}
}

func TestCollect(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()
	Reloads.Inc()
	Reloads.Inc()
	SnapshotLoad.Record(time.Millisecond)
	snap := Collect()
	if snap.Counters["reloads"] != 2 {
		t.Fatalf("reloads=%d; want 2", snap.Counters["reloads"])
	}
	if len(snap.Timings) != 1 || snap.Timings[0].Name != "snapshot_load" {
		t.Fatalf("Timings=%+v", snap.Timings)
	}
}
