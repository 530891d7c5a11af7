package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// ChartKind selects which series a chart plots.
type ChartKind string

const (
	ChartBurndown ChartKind = "burndown"
	ChartTrend    ChartKind = "trend"
)

// ParseChartKind parses a kind name. ok is false for unknown names.
func ParseChartKind(s string) (ChartKind, bool) {
	switch ChartKind(strings.ToLower(strings.TrimSpace(s))) {
	case ChartBurndown:
		return ChartBurndown, true
	case ChartTrend:
		return ChartTrend, true
	}
	return "", false
}

// ChartOptions controls chart export.
type ChartOptions struct {
	Path   string    // Output path; format inferred from extension when Format empty
	Format string    // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Kind   ChartKind // burndown (default) or trend
	Title  string    // Optional title; defaults per kind
	Width  int       // Defaults to 800
	Height int       // Defaults to 480
}

// SaveChart renders a chart of vm to opts.Path.
func SaveChart(vm dashboard.ViewModel, opts ChartOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := chartFormat(&opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	var buf bytes.Buffer
	if err := RenderChart(&buf, vm, opts, format); err != nil {
		return err
	}
	if err := os.WriteFile(opts.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// RenderChart writes a chart of vm in format ("svg" or "png") to w.
func RenderChart(w io.Writer, vm dashboard.ViewModel, opts ChartOptions, format string) error {
	defer metrics.Timer(metrics.ChartRender)()

	var layout chartLayout
	switch opts.Kind {
	case "", ChartBurndown:
		layout = burndownLayout(vm.Burndown, opts)
	case ChartTrend:
		layout = trendLayout(vm.Trend, opts)
	default:
		return fmt.Errorf("unsupported chart kind %q (want burndown or trend)", opts.Kind)
	}

	switch strings.ToLower(format) {
	case "svg":
		return renderChartSVG(w, layout)
	case "png":
		return renderChartPNG(w, layout)
	default:
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
}

func chartFormat(opts *ChartOptions) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if filepath.Ext(opts.Path) == "" {
				opts.Path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, nil
}

// --- layout computation ----------------------------------------------------

type chartSeries struct {
	Name   string
	Color  color.RGBA
	Values []float64
	Dashed bool
}

type chartLayout struct {
	Width, Height int
	Title         string
	Subtitle      string
	// Plot area
	Left, Top, Right, Bottom float64
	YMax                     float64
	XLabels                  []string
	Series                   []chartSeries
}

const (
	chartPadding = 56.0
	chartHeader  = 72.0
	yTicks       = 5
)

func newLayout(opts ChartOptions, title, subtitle string) chartLayout {
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 480
	}
	w = max(w, 320)
	h = max(h, 240)
	if t := strings.TrimSpace(opts.Title); t != "" {
		title = t
	}
	return chartLayout{
		Width:    w,
		Height:   h,
		Title:    title,
		Subtitle: subtitle,
		Left:     chartPadding,
		Top:      chartHeader,
		Right:    float64(w) - chartPadding/2,
		Bottom:   float64(h) - chartPadding/1.5,
	}
}

func burndownLayout(b analysis.Burndown, opts ChartOptions) chartLayout {
	sprint := b.Sprint
	if sprint == "" {
		sprint = "no sprint"
	}
	l := newLayout(opts, "Sprint Burndown",
		fmt.Sprintf("%s  total: %d pts  progress: %d%%  days: %d", sprint, b.Total, b.Progress, b.TotalDays))

	ideal := make([]float64, len(b.Points))
	actual := make([]float64, len(b.Points))
	l.XLabels = make([]string, len(b.Points))
	for i, p := range b.Points {
		ideal[i] = p.Ideal
		actual[i] = p.Actual
		l.XLabels[i] = fmt.Sprintf("%d", p.Day)
	}
	l.Series = []chartSeries{
		{Name: "Ideal", Color: colorIdeal, Values: ideal, Dashed: true},
		{Name: "Actual", Color: colorActual, Values: actual},
	}
	l.YMax = niceMax(float64(b.Total), ideal, actual)
	return l
}

func trendLayout(s trend.Series, opts ChartOptions) chartLayout {
	l := newLayout(opts, "Performance Trend",
		fmt.Sprintf("timeframe: %s  velocity: %s  progress: %s  quality: %s",
			s.Timeframe, s.VelocityDirection, s.ProgressDirection, s.QualityDirection))

	l.XLabels = make([]string, len(s.Samples))
	for i, x := range s.Samples {
		l.XLabels[i] = x.Date.Format("01-02")
	}
	vel, prog, qual := s.Velocities(), s.Progresses(), s.Qualities()
	l.Series = []chartSeries{
		{Name: "Velocity", Color: colorVelocity, Values: vel},
		{Name: "Progress", Color: colorProgress, Values: prog},
		{Name: "Quality", Color: colorQuality, Values: qual},
	}
	l.YMax = niceMax(100, vel, prog, qual)
	return l
}

// niceMax returns a round upper bound covering floor and every value.
func niceMax(floor float64, cols ...[]float64) float64 {
	m := floor
	for _, c := range cols {
		for _, v := range c {
			if !math.IsNaN(v) && !math.IsInf(v, 0) && v > m {
				m = v
			}
		}
	}
	if m <= 0 {
		return 10
	}
	step := math.Pow(10, math.Floor(math.Log10(m)))
	return math.Ceil(m/step) * step
}

func (l chartLayout) x(i, n int) float64 {
	if n <= 1 {
		return l.Left
	}
	return l.Left + float64(i)*(l.Right-l.Left)/float64(n-1)
}

func (l chartLayout) y(v float64) float64 {
	if l.YMax <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return l.Bottom
	}
	v = math.Max(0, math.Min(v, l.YMax))
	return l.Bottom - v/l.YMax*(l.Bottom-l.Top)
}

// labelStride thins x labels so they do not overlap.
func (l chartLayout) labelStride() int {
	n := len(l.XLabels)
	if n == 0 {
		return 1
	}
	fit := int((l.Right - l.Left) / 48)
	return max(1, (n+fit-1)/max(fit, 1))
}

// --- rendering -------------------------------------------------------------

var (
	colorIdeal    = color.RGBA{0x9e, 0x9e, 0x9e, 0xff}
	colorActual   = color.RGBA{0x1e, 0x88, 0xe5, 0xff}
	colorVelocity = color.RGBA{0x43, 0xa0, 0x47, 0xff}
	colorProgress = color.RGBA{0x1e, 0x88, 0xe5, 0xff}
	colorQuality  = color.RGBA{0xfb, 0x8c, 0x00, 0xff}
	colorAxis     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorGrid     = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func renderChartPNG(w io.Writer, l chartLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(12, 12, float64(l.Width)-24, chartHeader-28, 8)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, 24, 26, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(l.Subtitle, 24, 44, 0, 0.5)

	// grid and y labels
	dc.SetLineWidth(1)
	for i := 0; i <= yTicks; i++ {
		v := l.YMax * float64(i) / yTicks
		y := l.y(v)
		dc.SetColor(colorGrid)
		dc.DrawLine(l.Left, y, l.Right, y)
		dc.Stroke()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(formatTick(v), l.Left-6, y, 1, 0.5)
	}

	// axes
	dc.SetColor(colorAxis)
	dc.DrawLine(l.Left, l.Top, l.Left, l.Bottom)
	dc.Stroke()
	dc.DrawLine(l.Left, l.Bottom, l.Right, l.Bottom)
	dc.Stroke()

	stride := l.labelStride()
	dc.SetColor(colorSubtle)
	for i, label := range l.XLabels {
		if i%stride != 0 {
			continue
		}
		dc.DrawStringAnchored(label, l.x(i, len(l.XLabels)), l.Bottom+12, 0.5, 0.5)
	}

	for _, s := range l.Series {
		drawSeries(dc, l, s)
	}
	drawChartLegend(dc, l)

	return dc.EncodePNG(w)
}

func drawSeries(dc *gg.Context, l chartLayout, s chartSeries) {
	if len(s.Values) == 0 {
		return
	}
	dc.SetColor(s.Color)
	dc.SetLineWidth(2)
	if s.Dashed {
		dc.SetDash(6, 4)
	}
	dc.NewSubPath()
	for i, v := range s.Values {
		x, y := l.x(i, len(s.Values)), l.y(v)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
	dc.SetDash()
	if len(s.Values) == 1 {
		dc.DrawCircle(l.x(0, 1), l.y(s.Values[0]), 3)
		dc.Fill()
	}
}

func drawChartLegend(dc *gg.Context, l chartLayout) {
	x := l.Right - 110
	y := l.Top + 8
	for i, s := range l.Series {
		row := y + float64(i)*16
		dc.SetColor(s.Color)
		dc.DrawRoundedRectangle(x, row-6, 12, 12, 2)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(s.Name, x+18, row, 0, 0.5)
	}
}

func renderChartSVG(w io.Writer, l chartLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(12, 12, l.Width-24, int(chartHeader-28), 8, 8, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(24, 30, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(24, 48, l.Subtitle, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	left, right, top, bottom := int(l.Left), int(l.Right), int(l.Top), int(l.Bottom)
	for i := 0; i <= yTicks; i++ {
		v := l.YMax * float64(i) / yTicks
		y := int(l.y(v))
		canvas.Line(left, y, right, y, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorGrid)))
		canvas.Text(left-6, y+4, formatTick(v),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:end", css(colorSubtle)))
	}
	canvas.Line(left, top, left, bottom, fmt.Sprintf("stroke:%s;stroke-width:1.5", css(colorAxis)))
	canvas.Line(left, bottom, right, bottom, fmt.Sprintf("stroke:%s;stroke-width:1.5", css(colorAxis)))

	stride := l.labelStride()
	for i, label := range l.XLabels {
		if i%stride != 0 {
			continue
		}
		canvas.Text(int(l.x(i, len(l.XLabels))), bottom+16, label,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
	}

	for _, s := range l.Series {
		if len(s.Values) == 0 {
			continue
		}
		xs := make([]int, len(s.Values))
		ys := make([]int, len(s.Values))
		for i, v := range s.Values {
			xs[i] = int(l.x(i, len(s.Values)))
			ys[i] = int(l.y(v))
		}
		style := fmt.Sprintf("fill:none;stroke:%s;stroke-width:2", css(s.Color))
		if s.Dashed {
			style += ";stroke-dasharray:6,4"
		}
		if len(xs) == 1 {
			canvas.Circle(xs[0], ys[0], 3, fmt.Sprintf("fill:%s", css(s.Color)))
			continue
		}
		canvas.Polyline(xs, ys, style)
	}

	lx := right - 110
	ly := top + 8
	for i, s := range l.Series {
		row := ly + i*16
		canvas.Roundrect(lx, row-6, 12, 12, 2, 2, fmt.Sprintf("fill:%s", css(s.Color)))
		canvas.Text(lx+18, row+4, s.Name, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
