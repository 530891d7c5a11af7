package analysis

import (
	"math"
	"testing"

	"github.com/vanderheijden86/pulseboard/pkg/model"
	"pgregory.net/rapid"
)

func TestComputeCapacity_BackendScenario(t *testing.T) {
	teams := []model.Team{model.TeamFromRecord(model.Record{"Title": "Backend", "Story Points": "40"})}
	epics := []model.Epic{
		{ID: "EP-1", Team: "Backend", StoryPoints: 25},
		{ID: "EP-2", Team: "Backend", StoryPoints: 15},
		{ID: "EP-3", Team: "Backend, Frontend", StoryPoints: 99},
	}
	got := ComputeCapacity(teams, epics, DefaultThresholds())
	if len(got) != 1 {
		t.Fatalf("expected 1 capacity, got %d", len(got))
	}
	c := got[0]
	if c.Velocity != 40 {
		t.Errorf("Velocity=%d; want 40", c.Velocity)
	}
	if c.CapacityHours != 200 {
		t.Errorf("CapacityHours=%v; want 200", c.CapacityHours)
	}
	if c.AllocatedPoints != 40 {
		t.Errorf("AllocatedPoints=%d; want 40 (exact team match only)", c.AllocatedPoints)
	}
	if c.Utilization != 20 {
		t.Errorf("Utilization=%v; want 20", c.Utilization)
	}
	if c.Status != CapacityUnderutilized {
		t.Errorf("Status=%s; want Underutilized", c.Status)
	}
}

func TestClassifyUtilization(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		util float64
		want CapacityStatus
	}{
		{100, CapacityOverloaded},
		{90, CapacityOverloaded},
		{89.9, CapacityHigh},
		{75, CapacityHigh},
		{50, CapacityOptimal},
		{49.99, CapacityUnderutilized},
		{0, CapacityUnderutilized},
	}
	for _, tt := range tests {
		if got := ClassifyUtilization(tt.util, th); got != tt.want {
			t.Errorf("ClassifyUtilization(%v)=%s; want %s", tt.util, got, tt.want)
		}
	}
}

func TestComputeCapacity_OverAllocatedClamps(t *testing.T) {
	teams := []model.Team{{Title: "Data", StoryPoints: 10, MemberCount: 1}}
	epics := []model.Epic{{Team: "Data", StoryPoints: 500}}
	c := ComputeCapacity(teams, epics, DefaultThresholds())[0]
	if c.Utilization != 100 || c.Status != CapacityOverloaded {
		t.Fatalf("got %+v; want clamped 100 Overloaded", c)
	}
}

func TestSummarizeVelocity_Empty(t *testing.T) {
	s := SummarizeVelocity(nil)
	if s.TeamCount != 0 || s.TotalVelocity != 0 || s.AverageVelocity != 0 || s.AverageUtilization != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestSummarizeVelocity(t *testing.T) {
	caps := []TeamCapacity{
		{Velocity: 40, CapacityHours: 200, Utilization: 20},
		{Velocity: 20, CapacityHours: 120, Utilization: 60},
	}
	s := SummarizeVelocity(caps)
	if s.TotalVelocity != 60 || s.AverageVelocity != 30 || s.TotalCapacityHours != 320 || s.AverageUtilization != 40 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestComputeCapacity_UtilizationBounded(t *testing.T) {
	th := DefaultThresholds()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(t, "teams")
		teams := make([]model.Team, n)
		for i := range teams {
			teams[i] = model.Team{
				Title:       rapid.SampledFrom([]string{"A", "B", "C"}).Draw(t, "title"),
				StoryPoints: rapid.IntRange(-10, 500).Draw(t, "points"),
				MemberCount: rapid.IntRange(-2, 20).Draw(t, "members"),
			}
		}
		epics := rapid.SliceOf(rapid.Custom(func(t *rapid.T) model.Epic {
			return model.Epic{
				Team:        rapid.SampledFrom([]string{"A", "B", "C", ""}).Draw(t, "team"),
				StoryPoints: rapid.IntRange(0, 1000).Draw(t, "sp"),
			}
		})).Draw(t, "epics")
		for _, c := range ComputeCapacity(teams, epics, th) {
			if c.Utilization < 0 || c.Utilization > 100 || math.IsNaN(c.Utilization) {
				t.Fatalf("utilization out of range: %v", c.Utilization)
			}
			if c.CapacityHours <= 0 {
				t.Fatalf("capacity must be positive with default member count, got %v", c.CapacityHours)
			}
		}
	})
}
