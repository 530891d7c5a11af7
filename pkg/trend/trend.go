// Package trend synthesizes daily metric series for the dashboard trend
// charts.
//
// There is no persisted history, so the series is a simulation: each day's
// value is the current aggregate scaled by a linear drift term and a bounded
// random perturbation. The random source is injected, so a fixed seed yields
// identical series.
package trend

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Timeframe is a trend window.
type Timeframe string

const (
	Week    Timeframe = "week"
	Month   Timeframe = "month"
	Quarter Timeframe = "quarter"
)

// Days returns the number of daily samples in the window.
func (tf Timeframe) Days() int {
	switch tf {
	case Week:
		return 7
	case Quarter:
		return 90
	default:
		return 30
	}
}

// ParseTimeframe maps user input to a Timeframe, defaulting to Month.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case Week:
		return Week
	case Quarter:
		return Quarter
	default:
		return Month
	}
}

// IsTimeframe reports whether s names a timeframe, ignoring case.
func IsTimeframe(s string) bool {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case Week, Month, Quarter:
		return true
	}
	return false
}

// Direction classifies a series.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

// Source supplies uniform floats in [0,1).
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic PCG-backed source.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Default perturbation parameters.
const (
	DefaultAmplitude = 0.10
	DefaultDrift     = 0.05
	directionWindow  = 7
	directionBand    = 0.05
)

// Base is the set of current aggregates a series is anchored to.
type Base struct {
	Velocity float64 `json:"velocity"`
	Progress float64 `json:"progress"`
	Quality  float64 `json:"quality"`
}

// Sample is one synthesized day.
type Sample struct {
	Date     time.Time `json:"date"`
	Velocity float64   `json:"velocity"`
	Progress float64   `json:"progress"`
	Quality  float64   `json:"quality"`
}

// Series is a synthesized trend with a direction per metric.
type Series struct {
	Timeframe         Timeframe `json:"timeframe"`
	Samples           []Sample  `json:"samples"`
	VelocityDirection Direction `json:"velocity_direction"`
	ProgressDirection Direction `json:"progress_direction"`
	QualityDirection  Direction `json:"quality_direction"`
}

// Velocities returns the velocity column.
func (s Series) Velocities() []float64 { return s.column(func(x Sample) float64 { return x.Velocity }) }

// Progresses returns the progress column.
func (s Series) Progresses() []float64 { return s.column(func(x Sample) float64 { return x.Progress }) }

// Qualities returns the quality column.
func (s Series) Qualities() []float64 { return s.column(func(x Sample) float64 { return x.Quality }) }

func (s Series) column(f func(Sample) float64) []float64 {
	out := make([]float64, len(s.Samples))
	for i, x := range s.Samples {
		out[i] = f(x)
	}
	return out
}

// Synthesizer produces series from a base. A nil Source yields an unperturbed
// series.
type Synthesizer struct {
	Source    Source
	Amplitude float64
	Drift     float64
}

// New returns a Synthesizer seeded with seed and the default parameters.
func New(seed uint64) *Synthesizer {
	return &Synthesizer{Source: NewSource(seed), Amplitude: DefaultAmplitude, Drift: DefaultDrift}
}

// Synthesize builds N daily samples ending at now's UTC date. Velocity is
// kept non-negative; progress and quality stay within [0,100].
func (s *Synthesizer) Synthesize(base Base, tf Timeframe, now time.Time) Series {
	n := tf.Days()
	today := now.UTC().Truncate(24 * time.Hour)
	out := Series{Timeframe: tf, Samples: make([]Sample, n)}
	for i := 0; i < n; i++ {
		drift := 1.0
		if n > 1 {
			drift += s.Drift * float64(i) / float64(n-1)
		}
		out.Samples[i] = Sample{
			Date:     today.AddDate(0, 0, i-(n-1)),
			Velocity: math.Max(0, sanitize(base.Velocity*drift*s.noise())),
			Progress: clamp100(base.Progress * drift * s.noise()),
			Quality:  clamp100(base.Quality * drift * s.noise()),
		}
	}
	out.VelocityDirection = Classify(out.Velocities())
	out.ProgressDirection = Classify(out.Progresses())
	out.QualityDirection = Classify(out.Qualities())
	return out
}

func (s *Synthesizer) noise() float64 {
	if s.Source == nil {
		return 1
	}
	u := s.Source.Float64()
	return 1 + s.Amplitude*(2*u-1)
}

// Classify compares the mean of the last seven values with the mean of the
// first seven. A change above five percent either way is a trend.
func Classify(values []float64) Direction {
	if len(values) == 0 {
		return Stable
	}
	w := min(directionWindow, len(values))
	first := stat.Mean(values[:w], nil)
	last := stat.Mean(values[len(values)-w:], nil)
	if first == 0 {
		if last > 0 {
			return Up
		}
		return Stable
	}
	change := (last - first) / math.Abs(first)
	switch {
	case change > directionBand:
		return Up
	case change < -directionBand:
		return Down
	default:
		return Stable
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, sanitize(v)))
}
