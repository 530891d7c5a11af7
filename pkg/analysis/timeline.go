package analysis

import (
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// TimelineEntry is an epic with a known schedule.
type TimelineEntry struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Team         string       `json:"team"`
	Status       model.Status `json:"status"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	DurationDays int          `json:"duration_days"`
	DaysLeft     int          `json:"days_left"`
}

// Timeline groups scheduled epics by deadline state.
type Timeline struct {
	Scheduled           int             `json:"scheduled"`
	Overdue             []TimelineEntry `json:"overdue"`
	Upcoming            []TimelineEntry `json:"upcoming"`
	AverageDurationDays float64         `json:"average_duration_days"`
}

// AnalyzeTimeline finds overdue epics (ended before now, not completed) and
// upcoming deadlines (ending within UpcomingWindowDays, not completed).
// Epics that end before they start are left out of the average duration.
func AnalyzeTimeline(epics []model.Epic, now time.Time, th Thresholds) Timeline {
	tl := Timeline{Overdue: []TimelineEntry{}, Upcoming: []TimelineEntry{}}
	window := time.Duration(th.UpcomingWindowDays) * 24 * time.Hour
	var durations []float64
	for _, e := range epics {
		if !e.HasDates() {
			continue
		}
		tl.Scheduled++
		entry := TimelineEntry{
			ID:           e.ID,
			Title:        e.Title,
			Team:         e.Team,
			Status:       e.Status,
			Start:        e.StartDate,
			End:          e.EndDate,
			DurationDays: max(0, int(e.EndDate.Sub(e.StartDate).Hours()/24)),
			DaysLeft:     int(e.EndDate.Sub(now).Hours() / 24),
		}
		// Reversed dates still count for the deadline but not the average.
		if !e.EndDate.Before(e.StartDate) {
			durations = append(durations, float64(entry.DurationDays))
		}
		if e.Status == model.StatusCompleted {
			continue
		}
		switch {
		case e.EndDate.Before(now):
			tl.Overdue = append(tl.Overdue, entry)
		case e.EndDate.Sub(now) <= window:
			tl.Upcoming = append(tl.Upcoming, entry)
		}
	}
	tl.AverageDurationDays = round1(mean(durations))
	return tl
}
