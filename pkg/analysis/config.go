// Package analysis derives dashboard metrics from normalized records:
// capacity, distributions, burndown, DORA, collaboration, risk, timeline and
// templated insights. Every deriver is a pure function of its inputs.
package analysis

import (
	"os"
	"strconv"
	"strings"
)

// Thresholds holds every tunable constant used by the metric derivers.
// The zero value is not useful; start from DefaultThresholds.
type Thresholds struct {
	// Capacity
	HoursPerMember      float64 `yaml:"hours_per_member" json:"hours_per_member"`
	UtilizationOverload float64 `yaml:"utilization_overloaded" json:"utilization_overloaded"`
	UtilizationHigh     float64 `yaml:"utilization_high" json:"utilization_high"`
	UtilizationOptimal  float64 `yaml:"utilization_optimal" json:"utilization_optimal"`

	// DORA targets. Deployment frequency is in deploys per week.
	DeployFreqElite       float64 `yaml:"deploy_freq_elite" json:"deploy_freq_elite"`
	DeployFreqHigh        float64 `yaml:"deploy_freq_high" json:"deploy_freq_high"`
	DegradedDeployDivisor float64 `yaml:"degraded_deploy_divisor" json:"degraded_deploy_divisor"`
	LeadTimeEliteDays     float64 `yaml:"lead_time_elite_days" json:"lead_time_elite_days"`
	LeadTimeHighDays      float64 `yaml:"lead_time_high_days" json:"lead_time_high_days"`
	MTTREliteHours        float64 `yaml:"mttr_elite_hours" json:"mttr_elite_hours"`
	MTTRHighHours         float64 `yaml:"mttr_high_hours" json:"mttr_high_hours"`
	CFREliteRate          float64 `yaml:"cfr_elite_rate" json:"cfr_elite_rate"`
	CFRHighRate           float64 `yaml:"cfr_high_rate" json:"cfr_high_rate"`

	// Collaboration
	EpicWeight       int `yaml:"epic_weight" json:"epic_weight"`
	BacklogWeight    int `yaml:"backlog_weight" json:"backlog_weight"`
	CrossTeamWeight  int `yaml:"cross_team_weight" json:"cross_team_weight"`
	DependencyWeight int `yaml:"dependency_weight" json:"dependency_weight"`
	CollabExcellent  int `yaml:"collab_excellent" json:"collab_excellent"`
	CollabGood       int `yaml:"collab_good" json:"collab_good"`
	CollabFair       int `yaml:"collab_fair" json:"collab_fair"`

	// Risk
	TechDebtMedium      int     `yaml:"tech_debt_medium" json:"tech_debt_medium"`
	TechDebtHigh        int     `yaml:"tech_debt_high" json:"tech_debt_high"`
	BlockedMedium       int     `yaml:"blocked_medium" json:"blocked_medium"`
	BlockedHigh         int     `yaml:"blocked_high" json:"blocked_high"`
	DeliveryActiveRatio float64 `yaml:"delivery_active_ratio" json:"delivery_active_ratio"`

	// Timeline and insights
	UpcomingWindowDays int `yaml:"upcoming_window_days" json:"upcoming_window_days"`
	MaxInsights        int `yaml:"max_insights" json:"max_insights"`
	MaxRecommendations int `yaml:"max_recommendations" json:"max_recommendations"`
}

// DefaultThresholds returns the stock thresholds with environment overrides
// applied.
func DefaultThresholds() Thresholds {
	th := Thresholds{
		HoursPerMember:      40,
		UtilizationOverload: 90,
		UtilizationHigh:     75,
		UtilizationOptimal:  50,

		DeployFreqElite:       3,
		DeployFreqHigh:        1,
		DegradedDeployDivisor: 30,
		LeadTimeEliteDays:     7,
		LeadTimeHighDays:      30,
		MTTREliteHours:        4,
		MTTRHighHours:         24,
		CFREliteRate:          5,
		CFRHighRate:           15,

		EpicWeight:       10,
		BacklogWeight:    5,
		CrossTeamWeight:  15,
		DependencyWeight: 10,
		CollabExcellent:  80,
		CollabGood:       60,
		CollabFair:       40,

		TechDebtMedium:      2,
		TechDebtHigh:        5,
		BlockedMedium:       3,
		BlockedHigh:         6,
		DeliveryActiveRatio: 0.30,

		UpcomingWindowDays: 30,
		MaxInsights:        6,
		MaxRecommendations: 4,
	}
	return ApplyEnvOverrides(th)
}

// WithDefaults fills zero-valued fields from DefaultThresholds, so a partially
// written YAML block keeps working. Every threshold must be positive: an
// explicit 0 or a negative value is indistinguishable from an omitted key and
// also takes the default.
func (th Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	fillF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fillI := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fillF(&th.HoursPerMember, d.HoursPerMember)
	fillF(&th.UtilizationOverload, d.UtilizationOverload)
	fillF(&th.UtilizationHigh, d.UtilizationHigh)
	fillF(&th.UtilizationOptimal, d.UtilizationOptimal)
	fillF(&th.DeployFreqElite, d.DeployFreqElite)
	fillF(&th.DeployFreqHigh, d.DeployFreqHigh)
	fillF(&th.DegradedDeployDivisor, d.DegradedDeployDivisor)
	fillF(&th.LeadTimeEliteDays, d.LeadTimeEliteDays)
	fillF(&th.LeadTimeHighDays, d.LeadTimeHighDays)
	fillF(&th.MTTREliteHours, d.MTTREliteHours)
	fillF(&th.MTTRHighHours, d.MTTRHighHours)
	fillF(&th.CFREliteRate, d.CFREliteRate)
	fillF(&th.CFRHighRate, d.CFRHighRate)
	fillI(&th.EpicWeight, d.EpicWeight)
	fillI(&th.BacklogWeight, d.BacklogWeight)
	fillI(&th.CrossTeamWeight, d.CrossTeamWeight)
	fillI(&th.DependencyWeight, d.DependencyWeight)
	fillI(&th.CollabExcellent, d.CollabExcellent)
	fillI(&th.CollabGood, d.CollabGood)
	fillI(&th.CollabFair, d.CollabFair)
	fillI(&th.TechDebtMedium, d.TechDebtMedium)
	fillI(&th.TechDebtHigh, d.TechDebtHigh)
	fillI(&th.BlockedMedium, d.BlockedMedium)
	fillI(&th.BlockedHigh, d.BlockedHigh)
	fillF(&th.DeliveryActiveRatio, d.DeliveryActiveRatio)
	fillI(&th.UpcomingWindowDays, d.UpcomingWindowDays)
	fillI(&th.MaxInsights, d.MaxInsights)
	fillI(&th.MaxRecommendations, d.MaxRecommendations)
	return th
}

const (
	// EnvHoursPerMember overrides the weekly hours each team member contributes.
	EnvHoursPerMember = "PULSE_HOURS_PER_MEMBER"
	// EnvUpcomingWindowDays overrides the upcoming-deadline window.
	EnvUpcomingWindowDays = "PULSE_UPCOMING_WINDOW_DAYS"
)

// ApplyEnvOverrides applies environment-variable tunables to th.
//
// Supported:
//   - PULSE_HOURS_PER_MEMBER=N: capacity hours per member (must be >0).
//   - PULSE_UPCOMING_WINDOW_DAYS=N: upcoming deadline window in days (must be >0).
func ApplyEnvOverrides(th Thresholds) Thresholds {
	if v, ok := envPositiveFloat(EnvHoursPerMember); ok {
		th.HoursPerMember = v
	}
	if n, ok := envPositiveInt(EnvUpcomingWindowDays); ok {
		th.UpcomingWindowDays = n
	}
	return th
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envPositiveFloat(name string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
