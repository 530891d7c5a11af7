package analysis

import (
	"testing"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

func TestAnalyzeTimeline(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	epics := []model.Epic{
		{ID: "late", Status: model.StatusActive, StartDate: day(2024, 5, 1), EndDate: day(2024, 6, 1)},
		{ID: "done-late", Status: model.StatusCompleted, StartDate: day(2024, 5, 1), EndDate: day(2024, 6, 1)},
		{ID: "soon", Status: model.StatusPlanning, StartDate: day(2024, 6, 1), EndDate: day(2024, 7, 1)},
		{ID: "far", Status: model.StatusActive, StartDate: day(2024, 6, 1), EndDate: day(2024, 12, 1)},
		{ID: "undated", Status: model.StatusActive},
	}
	tl := AnalyzeTimeline(epics, now, DefaultThresholds())
	if tl.Scheduled != 4 {
		t.Fatalf("Scheduled=%d; want 4", tl.Scheduled)
	}
	if len(tl.Overdue) != 1 || tl.Overdue[0].ID != "late" {
		t.Fatalf("Overdue=%+v", tl.Overdue)
	}
	if len(tl.Upcoming) != 1 || tl.Upcoming[0].ID != "soon" {
		t.Fatalf("Upcoming=%+v", tl.Upcoming)
	}
	// (31 + 31 + 30 + 183) / 4
	if tl.AverageDurationDays != 68.8 {
		t.Fatalf("AverageDurationDays=%v", tl.AverageDurationDays)
	}
}

func TestAnalyzeTimeline_Empty(t *testing.T) {
	tl := AnalyzeTimeline(nil, time.Now(), DefaultThresholds())
	if tl.Scheduled != 0 || tl.AverageDurationDays != 0 || tl.Overdue == nil || tl.Upcoming == nil {
		t.Fatalf("unexpected empty timeline %+v", tl)
	}
}

func TestAnalyzeTimeline_ReversedDatesSkipAverage(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	epics := []model.Epic{
		{ID: "ok", Status: model.StatusActive, StartDate: day(2024, 6, 1), EndDate: day(2024, 6, 11)},
		{ID: "reversed", Status: model.StatusActive, StartDate: day(2024, 8, 1), EndDate: day(2024, 7, 1)},
	}
	tl := AnalyzeTimeline(epics, now, DefaultThresholds())
	if tl.Scheduled != 2 {
		t.Fatalf("Scheduled=%d; want 2", tl.Scheduled)
	}
	if tl.AverageDurationDays != 10 {
		t.Fatalf("AverageDurationDays=%v; want 10", tl.AverageDurationDays)
	}
	for _, e := range append(tl.Overdue, tl.Upcoming...) {
		if e.DurationDays < 0 {
			t.Fatalf("negative duration for %s", e.ID)
		}
	}
}
