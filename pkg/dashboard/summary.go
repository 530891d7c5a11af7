package dashboard

import (
	"math"
	"reflect"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// Summary is the flat export/reporting view of a ViewModel.
type Summary struct {
	Epics   int `json:"epics"`
	Teams   int `json:"teams"`
	Backlog int `json:"backlog"`
	Sprints int `json:"sprints"`

	EpicStoryPoints    int `json:"epic_story_points"`
	BacklogStoryPoints int `json:"backlog_story_points"`
	TotalVelocity      int `json:"total_velocity"`

	ActiveEpics    int `json:"active_epics"`
	CompletedEpics int `json:"completed_epics"`
	BlockedEpics   int `json:"blocked_epics"`
	BlockedItems   int `json:"blocked_items"`

	AverageProgress    float64 `json:"average_progress"`
	AverageUtilization float64 `json:"average_utilization"`

	DORA map[string]analysis.DORALevel `json:"dora"`

	Risks       int `json:"risks"`
	HighRisks   int `json:"high_risks"`
	MediumRisks int `json:"medium_risks"`
	Overdue     int `json:"overdue"`

	Criteria  filter.Criteria `json:"criteria"`
	Timeframe trend.Timeframe `json:"timeframe"`
}

// Summarize flattens vm into counts and totals.
func Summarize(vm ViewModel) Summary {
	s := Summary{
		Epics:              len(vm.Epics),
		Teams:              len(vm.Teams),
		Backlog:            len(vm.Backlog),
		Sprints:            len(vm.Sprints),
		TotalVelocity:      vm.Velocity.TotalVelocity,
		AverageProgress:    round1(averageProgress(vm.Epics)),
		AverageUtilization: round1(vm.Velocity.AverageUtilization),
		DORA:               make(map[string]analysis.DORALevel, 4),
		Risks:              vm.RiskSummary.Total,
		HighRisks:          vm.RiskSummary.ByLevel[analysis.RiskHigh],
		MediumRisks:        vm.RiskSummary.ByLevel[analysis.RiskMedium],
		Overdue:            len(vm.Timeline.Overdue),
		Criteria:           vm.Criteria,
		Timeframe:          vm.Timeframe,
	}
	for _, e := range vm.Epics {
		s.EpicStoryPoints += e.StoryPoints
		switch e.Status {
		case model.StatusActive:
			s.ActiveEpics++
		case model.StatusCompleted:
			s.CompletedEpics++
		case model.StatusBlocked:
			s.BlockedEpics++
		}
	}
	for _, b := range vm.Backlog {
		s.BacklogStoryPoints += b.StoryPoints
		if b.Status == model.StatusBlocked {
			s.BlockedItems++
		}
	}
	for _, m := range vm.DORA.All() {
		s.DORA[m.Key] = m.Level
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Finite reports whether every float in the view-model is a real number.
func (vm ViewModel) Finite() bool {
	return finiteValue(reflect.ValueOf(vm))
}

func finiteValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !finiteValue(v.Field(i)) {
				return false
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !finiteValue(v.Index(i)) {
				return false
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !finiteValue(iter.Value()) {
				return false
			}
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return finiteValue(v.Elem())
		}
	}
	return true
}
