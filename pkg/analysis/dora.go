package analysis

import (
	"fmt"
	"math"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// DORALevel is the performance band of a DORA metric.
type DORALevel string

const (
	LevelElite DORALevel = "Elite"
	LevelHigh  DORALevel = "High"
	LevelLow   DORALevel = "Low"
)

// DORA metric keys.
const (
	KeyDeploymentFrequency = "deployment_frequency"
	KeyLeadTime            = "lead_time"
	KeyMTTR                = "mttr"
	KeyChangeFailureRate   = "change_failure_rate"
)

// Mode records whether a metric came from explicit delivery counters or from
// the fallback proxy.
type Mode string

const (
	ModeMeasured Mode = "measured"
	ModeDegraded Mode = "degraded"
)

// DORAMetric is one independently addressable delivery metric. Level is
// classified from the unrounded value; Value is rounded to one decimal for
// display.
type DORAMetric struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	Target  string    `json:"target"`
	Level   DORALevel `json:"level"`
	Mode    Mode      `json:"mode"`
	Samples int       `json:"samples"`
}

// DORAMetrics groups the four DORA metrics.
type DORAMetrics struct {
	DeploymentFrequency DORAMetric `json:"deployment_frequency"`
	LeadTime            DORAMetric `json:"lead_time"`
	MTTR                DORAMetric `json:"mttr"`
	ChangeFailureRate   DORAMetric `json:"change_failure_rate"`
}

// All returns the metrics in display order.
func (d DORAMetrics) All() []DORAMetric {
	return []DORAMetric{d.DeploymentFrequency, d.LeadTime, d.MTTR, d.ChangeFailureRate}
}

// Get returns the metric with the given key.
func (d DORAMetrics) Get(key string) (DORAMetric, bool) {
	for _, m := range d.All() {
		if m.Key == key {
			return m, true
		}
	}
	return DORAMetric{}, false
}

// ComputeDORA derives all four metrics. Each one is computed independently so
// a missing input only affects the metric that needs it.
func ComputeDORA(epics []model.Epic, teams []model.Team, backlog []model.BacklogItem, th Thresholds) DORAMetrics {
	return DORAMetrics{
		DeploymentFrequency: DeploymentFrequency(epics, teams, th),
		LeadTime:            LeadTime(epics, th),
		MTTR:                MTTR(epics, th),
		ChangeFailureRate:   ChangeFailureRate(epics, backlog, th),
	}
}

// DeploymentFrequency is the mean deploy counter over epics that carry one,
// in deploys per week. Without counters it falls back to total team story
// points divided by DegradedDeployDivisor.
func DeploymentFrequency(epics []model.Epic, teams []model.Team, th Thresholds) DORAMetric {
	m := DORAMetric{
		Key:    KeyDeploymentFrequency,
		Name:   "Deployment Frequency",
		Unit:   "deploys/week",
		Target: fmt.Sprintf("≥ %g per week", th.DeployFreqElite),
		Mode:   ModeMeasured,
	}
	var samples []float64
	for _, e := range epics {
		if e.HasDeployments {
			samples = append(samples, e.Deployments)
		}
	}
	if len(samples) > 0 {
		m.Value = mean(samples)
		m.Samples = len(samples)
	} else {
		m.Mode = ModeDegraded
		points := 0
		for _, t := range teams {
			points += max(0, t.StoryPoints)
		}
		if th.DegradedDeployDivisor > 0 {
			m.Value = float64(points) / th.DegradedDeployDivisor
		}
		m.Samples = len(teams)
	}
	m.Level = ClassifyAtLeast(finite(m.Value), th.DeployFreqElite, th.DeployFreqHigh)
	m.Value = round1(finite(m.Value))
	return m
}

// LeadTime is the mean duration in days of epics with both dates. Epics that
// end before they start are skipped.
func LeadTime(epics []model.Epic, th Thresholds) DORAMetric {
	m := DORAMetric{
		Key:    KeyLeadTime,
		Name:   "Lead Time for Changes",
		Unit:   "days",
		Target: fmt.Sprintf("≤ %g days", th.LeadTimeEliteDays),
		Mode:   ModeMeasured,
	}
	var samples []float64
	for _, e := range epics {
		// Reversed dates are bad data, not a zero-day delivery.
		if e.HasDates() && !e.EndDate.Before(e.StartDate) {
			samples = append(samples, e.EndDate.Sub(e.StartDate).Hours()/24)
		}
	}
	m.Samples = len(samples)
	raw := mean(samples)
	m.Level = ClassifyAtMost(raw, th.LeadTimeEliteDays, th.LeadTimeHighDays)
	m.Value = round1(raw)
	return m
}

// MTTR is the mean incident resolution time in hours over all epics, with
// absent counters contributing 0.
func MTTR(epics []model.Epic, th Thresholds) DORAMetric {
	m := DORAMetric{
		Key:    KeyMTTR,
		Name:   "Mean Time to Recovery",
		Unit:   "hours",
		Target: fmt.Sprintf("≤ %g hours", th.MTTREliteHours),
		Mode:   ModeMeasured,
	}
	samples := make([]float64, 0, len(epics))
	measured := false
	for _, e := range epics {
		samples = append(samples, e.IncidentHours)
		measured = measured || e.HasIncidentHours
	}
	if !measured {
		m.Mode = ModeDegraded
	}
	m.Samples = len(samples)
	raw := mean(samples)
	m.Level = ClassifyAtMost(raw, th.MTTREliteHours, th.MTTRHighHours)
	m.Value = round1(raw)
	return m
}

// ChangeFailureRate is the mean failed-deploy percentage over epics with at
// least one deployment. When no epic carries a deploy counter it falls back to
// the share of blocked backlog items.
func ChangeFailureRate(epics []model.Epic, backlog []model.BacklogItem, th Thresholds) DORAMetric {
	m := DORAMetric{
		Key:    KeyChangeFailureRate,
		Name:   "Change Failure Rate",
		Unit:   "%",
		Target: fmt.Sprintf("≤ %g%%", th.CFREliteRate),
		Mode:   ModeMeasured,
	}
	anyCounter := false
	var samples []float64
	for _, e := range epics {
		if !e.HasDeployments {
			continue
		}
		anyCounter = true
		if e.Deployments > 0 {
			samples = append(samples, math.Min(e.FailedDeployments, e.Deployments)/e.Deployments*100)
		}
	}
	if anyCounter {
		m.Samples = len(samples)
		m.Value = mean(samples)
	} else {
		m.Mode = ModeDegraded
		blocked := 0
		for _, b := range backlog {
			if b.Status == model.StatusBlocked {
				blocked++
			}
		}
		m.Samples = len(backlog)
		if len(backlog) > 0 {
			m.Value = float64(blocked) * 100 / float64(len(backlog))
		}
	}
	m.Level = ClassifyAtMost(finite(m.Value), th.CFREliteRate, th.CFRHighRate)
	m.Value = round1(finite(m.Value))
	return m
}

// ClassifyAtLeast bands a higher-is-better value. NaN is Low.
func ClassifyAtLeast(v, elite, high float64) DORALevel {
	switch {
	case v >= elite:
		return LevelElite
	case v >= high:
		return LevelHigh
	default:
		return LevelLow
	}
}

// ClassifyAtMost bands a lower-is-better value. NaN is Low.
func ClassifyAtMost(v, elite, high float64) DORALevel {
	switch {
	case v <= elite:
		return LevelElite
	case v <= high:
		return LevelHigh
	default:
		return LevelLow
	}
}
