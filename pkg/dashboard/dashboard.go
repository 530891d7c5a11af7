// Package dashboard is the aggregation facade: it filters a snapshot, runs
// every metric deriver and the trend synthesizer, and returns one immutable
// view-model for presentation and export.
package dashboard

import (
	"math"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// Options are the explicit inputs besides data, criteria and timeframe.
type Options struct {
	// Now is the evaluation time. Zero means time.Now().
	Now time.Time
	// Seed drives the trend synthesizer.
	Seed uint64
	// Thresholds; zero fields fall back to analysis defaults.
	Thresholds analysis.Thresholds
	// SprintTitle selects the burndown sprint; empty picks the active one.
	SprintTitle string
	// TrendAmplitude and TrendDrift tune the synthesizer. Negative values
	// disable the term; zero uses the defaults.
	TrendAmplitude float64
	TrendDrift     float64
}

func (o Options) resolve() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Thresholds = o.Thresholds.WithDefaults()
	o.TrendAmplitude = tuning(o.TrendAmplitude, trend.DefaultAmplitude)
	o.TrendDrift = tuning(o.TrendDrift, trend.DefaultDrift)
	return o
}

func tuning(v, def float64) float64 {
	switch {
	case v < 0:
		return 0
	case v == 0:
		return def
	default:
		return v
	}
}

// ViewModel is everything the dashboard renders for one set of inputs.
type ViewModel struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Criteria    filter.Criteria `json:"criteria"`
	Timeframe   trend.Timeframe `json:"timeframe"`
	Seed        uint64          `json:"seed"`

	Epics   []model.Epic        `json:"epics"`
	Teams   []model.Team        `json:"teams"`
	Backlog []model.BacklogItem `json:"backlog"`
	Sprints []model.Sprint      `json:"sprints"`

	Capacities          []analysis.TeamCapacity       `json:"capacities"`
	Velocity            analysis.VelocitySummary      `json:"velocity"`
	EpicDistribution    analysis.EpicDistribution     `json:"epic_distribution"`
	BacklogDistribution analysis.BacklogDistribution  `json:"backlog_distribution"`
	Burndown            analysis.Burndown             `json:"burndown"`
	DORA                analysis.DORAMetrics          `json:"dora"`
	Collaboration       []analysis.CollaborationScore `json:"collaboration"`
	Risks               []analysis.RiskAssessment     `json:"risks"`
	RiskSummary         analysis.RiskSummary          `json:"risk_summary"`
	Timeline            analysis.Timeline             `json:"timeline"`
	Trend               trend.Series                  `json:"trend"`
	Summary             Summary                       `json:"summary"`

	thresholds analysis.Thresholds
}

// Thresholds returns the thresholds the view-model was computed with.
func (vm ViewModel) Thresholds() analysis.Thresholds { return vm.thresholds }

// ComputeViewModel is the single entry point for presentation. It never
// fails; missing data degrades to zero values. With identical inputs,
// including Options.Now and Options.Seed, the output is identical.
func ComputeViewModel(snap model.Snapshot, criteria filter.Criteria, tf trend.Timeframe, opts Options) ViewModel {
	defer metrics.Timer(metrics.ViewModel)()
	opts = opts.resolve()
	th := opts.Thresholds
	criteria = criteria.Normalize()

	stopFilter := metrics.Timer(metrics.FilterApply)
	fs := filter.Snapshot(snap, criteria)
	stopFilter()

	vm := ViewModel{
		GeneratedAt: opts.Now,
		Criteria:    criteria,
		Timeframe:   tf,
		Seed:        opts.Seed,
		Epics:       nonNil(fs.Epics),
		Teams:       nonNil(fs.Teams),
		Backlog:     nonNil(fs.Backlog),
		Sprints:     nonNil(fs.Sprints),
		thresholds:  th,
	}

	stopDerive := metrics.Timer(metrics.MetricDerive)
	vm.Capacities = analysis.ComputeCapacity(vm.Teams, vm.Epics, th)
	vm.Velocity = analysis.SummarizeVelocity(vm.Capacities)
	vm.EpicDistribution = analysis.ComputeEpicDistribution(vm.Epics)
	vm.BacklogDistribution = analysis.ComputeBacklogDistribution(vm.Backlog)
	if sprint, ok := analysis.SelectSprint(vm.Sprints, opts.SprintTitle); ok {
		vm.Burndown = analysis.ComputeBurndown(sprint)
	} else {
		vm.Burndown = analysis.Burndown{Points: []analysis.BurndownPoint{}}
	}
	vm.DORA = analysis.ComputeDORA(vm.Epics, vm.Teams, vm.Backlog, th)
	vm.Collaboration = analysis.ComputeCollaboration(vm.Teams, vm.Epics, vm.Backlog, th)
	vm.Risks = nonNil(analysis.AssessRisks(vm.Teams, vm.Epics, vm.Backlog, th, opts.Now))
	vm.RiskSummary = analysis.SummarizeRisks(vm.Risks)
	vm.Timeline = analysis.AnalyzeTimeline(vm.Epics, opts.Now, th)
	stopDerive()

	stopTrend := metrics.Timer(metrics.TrendSynthesis)
	syn := &trend.Synthesizer{
		Source:    trend.NewSource(opts.Seed),
		Amplitude: opts.TrendAmplitude,
		Drift:     opts.TrendDrift,
	}
	vm.Trend = syn.Synthesize(trendBase(vm), tf, opts.Now)
	stopTrend()

	vm.Summary = Summarize(vm)
	return vm
}

// trendBase anchors the trend to the current aggregates: total velocity,
// average epic progress, and a quality score of 100 minus the change failure
// rate.
func trendBase(vm ViewModel) trend.Base {
	return trend.Base{
		Velocity: float64(vm.Velocity.TotalVelocity),
		Progress: averageProgress(vm.Epics),
		Quality:  math.Max(0, 100-vm.DORA.ChangeFailureRate.Value),
	}
}

// Insights answers a dashboard question from the view-model.
func (vm ViewModel) Insights(query string) analysis.Insights {
	return analysis.GenerateInsights(analysis.InsightInput{
		Epics:         vm.Epics,
		Teams:         vm.Teams,
		Backlog:       vm.Backlog,
		EpicDist:      vm.EpicDistribution,
		Velocity:      vm.Velocity,
		Capacities:    vm.Capacities,
		DORA:          vm.DORA,
		Collaboration: vm.Collaboration,
		Risks:         vm.Risks,
		Timeline:      vm.Timeline,
		Thresholds:    vm.thresholds.WithDefaults(),
	}, query)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func averageProgress(epics []model.Epic) float64 {
	if len(epics) == 0 {
		return 0
	}
	total := 0
	for _, e := range epics {
		total += e.ClampedProgress()
	}
	return float64(total) / float64(len(epics))
}
