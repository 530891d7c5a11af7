package analysis

import (
	"math"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// BurndownPoint is one day of a sprint burndown.
type BurndownPoint struct {
	Day    int       `json:"day"`
	Date   time.Time `json:"date,omitzero"`
	Ideal  float64   `json:"ideal"`
	Actual float64   `json:"actual"`
}

// Burndown is the ideal and progress-projected remaining work of a sprint.
type Burndown struct {
	Sprint    string          `json:"sprint"`
	Status    model.Status    `json:"status"`
	Total     int             `json:"total"`
	Progress  int             `json:"progress"`
	TotalDays int             `json:"total_days"`
	Points    []BurndownPoint `json:"points"`
}

// Remaining returns the projected remaining points at the end of the series.
func (b Burndown) Remaining() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	return b.Points[len(b.Points)-1].Actual
}

// SelectSprint picks the sprint named title, else the first Active sprint,
// else the first sprint. ok is false when sprints is empty.
func SelectSprint(sprints []model.Sprint, title string) (model.Sprint, bool) {
	if len(sprints) == 0 {
		return model.Sprint{}, false
	}
	if title != "" {
		for _, s := range sprints {
			if s.Title == title {
				return s, true
			}
		}
	}
	for _, s := range sprints {
		if s.Status == model.StatusActive {
			return s, true
		}
	}
	return sprints[0], true
}

// ComputeBurndown builds the daily series for day 0 through the sprint's last
// day. Actual remaining assumes linear delivery of the sprint's clamped
// progress. Without both dates, or with a non-positive span, the series is a
// single point at the committed total.
func ComputeBurndown(sprint model.Sprint) Burndown {
	total := float64(max(0, sprint.StoryPoints))
	progress := sprint.ClampedProgress()
	b := Burndown{
		Sprint:   sprint.Title,
		Status:   sprint.Status,
		Total:    int(total),
		Progress: progress,
	}

	days := 0
	if !sprint.StartDate.IsZero() && !sprint.EndDate.IsZero() {
		days = int(math.Floor(sprint.EndDate.Sub(sprint.StartDate).Hours() / 24))
	}
	if days <= 0 {
		p := BurndownPoint{Day: 0, Ideal: total, Actual: total}
		if !sprint.StartDate.IsZero() {
			p.Date = sprint.StartDate
		}
		b.Points = []BurndownPoint{p}
		return b
	}

	b.TotalDays = days
	b.Points = make([]BurndownPoint, 0, days+1)
	frac := float64(progress) / 100
	for i := 0; i <= days; i++ {
		elapsed := float64(i) / float64(days)
		b.Points = append(b.Points, BurndownPoint{
			Day:    i,
			Date:   sprint.StartDate.AddDate(0, 0, i),
			Ideal:  math.Max(0, total-total*elapsed),
			Actual: math.Max(0, total-total*frac*elapsed),
		})
	}
	return b
}
