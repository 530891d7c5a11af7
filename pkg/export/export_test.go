package export

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/testutil"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleVM(t *testing.T) dashboard.ViewModel {
	t.Helper()
	snap := testutil.NewDefault().Snapshot()
	return dashboard.ComputeViewModel(snap, filter.Criteria{}, trend.Month, dashboard.Options{Now: fixedNow, Seed: 42})
}

func emptyVM() dashboard.ViewModel {
	return dashboard.ComputeViewModel(model.Snapshot{}, filter.Criteria{}, trend.Week, dashboard.Options{Now: fixedNow, Seed: 1})
}

func TestGenerateMarkdown_Sections(t *testing.T) {
	vm := sampleVM(t)
	md := GenerateMarkdown(vm, ReportOptions{Title: "Q1 Portfolio", Query: "what are the risks?"})

	for _, want := range []string{
		"# Q1 Portfolio",
		"## Summary",
		"## Team Capacity",
		"## DORA Metrics",
		"## Sprint Burndown",
		"## Risks",
		"## Timeline",
		"## Epics",
		"## Insights",
		"> what are the risks?",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if !strings.Contains(md, "| **Epics** | 12 |") {
		t.Errorf("summary should count 12 epics")
	}
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	md := GenerateMarkdown(emptyVM(), ReportOptions{})
	if !strings.HasPrefix(md, "# Portfolio Report") {
		t.Errorf("default title missing: %q", md[:40])
	}
	for _, want := range []string{"*No teams.*", "*No risks detected.*", "*No epics.*", "*No sprint selected.*"} {
		if !strings.Contains(md, want) {
			t.Errorf("empty report missing %q", want)
		}
	}
	if strings.Contains(md, "## Insights") {
		t.Error("insights section should only render with a query")
	}
}

func TestGenerateMarkdown_FiltersAndLimit(t *testing.T) {
	snap := testutil.NewDefault().Snapshot()
	vm := dashboard.ComputeViewModel(snap, filter.Criteria{Teams: []string{"Backend"}}, trend.Month, dashboard.Options{Now: fixedNow})
	md := GenerateMarkdown(vm, ReportOptions{MaxEpics: 1})
	if !strings.Contains(md, "*Filters: team=Backend*") {
		t.Error("expected filter line")
	}
	if len(vm.Epics) > 1 && !strings.Contains(md, "more epics not shown") {
		t.Error("expected truncation note")
	}
}

func TestEscapeCell(t *testing.T) {
	if got := escapeCell("a|b\nc\r"); got != `a\|b c` {
		t.Errorf("escapeCell = %q", got)
	}
}

func TestBarChart(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{-1, "░░░░"},
		{0.3, "█░░░"},
		{0.5, "██░░"},
		{0.8, "███░"},
		{1, "████"},
		{5, "████"},
	}
	for _, tt := range tests {
		if got := barChart(tt.v); got != tt.want {
			t.Errorf("barChart(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestSaveMarkdownToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := SaveMarkdownToFile(sampleVM(t), ReportOptions{}, path); err != nil {
		t.Fatalf("SaveMarkdownToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Fatalf("report not written: %v", err)
	}
}

func TestSQLiteExport_RoundTripsSummary(t *testing.T) {
	vm := sampleVM(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "pulse-export.db")

	exp := NewSQLiteExporter(vm)
	exp.Config.Title = "test"
	exp.Config.WriteMetaJSON = true
	if err := exp.Export(context.Background(), path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := ReadSummary(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	s := vm.Summary
	if got.Epics != s.Epics || got.Teams != s.Teams || got.Backlog != s.Backlog || got.Sprints != s.Sprints {
		t.Errorf("counts differ: got %+v want %+v", got, s)
	}
	if got.TotalVelocity != s.TotalVelocity || got.Risks != s.Risks || got.Overdue != s.Overdue {
		t.Errorf("totals differ: got %+v", got)
	}
	if got.Timeframe != string(trend.Month) {
		t.Errorf("timeframe = %q", got.Timeframe)
	}
	if len(got.DORALevels) != 4 {
		t.Errorf("dora levels = %v", got.DORALevels)
	}
	if got.TrendSamples != len(vm.Trend.Samples) || got.BurndownPoints != len(vm.Burndown.Points) {
		t.Errorf("series sizes: trend=%d burndown=%d", got.TrendSamples, got.BurndownPoints)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "meta.json")); err != nil {
		t.Errorf("meta.json not written: %v", err)
	}
}

func TestSQLiteExport_EmptyAndOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	exp := NewSQLiteExporter(emptyVM())
	exp.Config.Optimize = false
	for range 2 {
		if err := exp.Export(context.Background(), path); err != nil {
			t.Fatalf("Export: %v", err)
		}
	}
	got, err := ReadSummary(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if got.Epics != 0 || got.TrendSamples != 7 || got.BurndownPoints != 0 {
		t.Errorf("empty export: %+v", got)
	}
}

func TestReadSummary_Missing(t *testing.T) {
	if _, err := ReadSummary(context.Background(), filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Fatal("expected error for missing export")
	}
}

func TestSaveChart_SVGAndPNG(t *testing.T) {
	vm := sampleVM(t)
	tmp := t.TempDir()
	cases := []struct {
		name string
		kind ChartKind
		file string
	}{
		{"burndown svg", ChartBurndown, "burndown.svg"},
		{"burndown png", ChartBurndown, "burndown.png"},
		{"trend svg", ChartTrend, "trend.svg"},
		{"trend png", ChartTrend, "trend.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(tmp, tc.file)
			if err := SaveChart(vm, ChartOptions{Path: out, Kind: tc.kind}); err != nil {
				t.Fatalf("SaveChart: %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("output file is empty")
			}
		})
	}
}

func TestRenderChart_SVGContent(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, sampleVM(t), ChartOptions{Kind: ChartTrend, Title: "Velocity"}, "svg"); err != nil {
		t.Fatalf("RenderChart: %v", err)
	}
	svg := buf.String()
	if !strings.Contains(svg, "<svg") || !strings.Contains(svg, "Velocity") || !strings.Contains(svg, "polyline") {
		t.Errorf("unexpected svg output: %.200s", svg)
	}
}

func TestRenderChart_PNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, emptyVM(), ChartOptions{Width: 400, Height: 300}, "png"); err != nil {
		t.Fatalf("RenderChart: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("size = %v", b)
	}
}

func TestChartErrors(t *testing.T) {
	vm := emptyVM()
	if err := SaveChart(vm, ChartOptions{}); err == nil {
		t.Error("expected error for empty path")
	}
	if err := SaveChart(vm, ChartOptions{Path: filepath.Join(t.TempDir(), "c.gif")}); err != nil {
		// unknown extension falls back to svg
		t.Errorf("unexpected error: %v", err)
	}
	if err := SaveChart(vm, ChartOptions{Path: filepath.Join(t.TempDir(), "c"), Format: "bmp"}); err == nil {
		t.Error("expected error for unsupported format")
	}
	var buf bytes.Buffer
	if err := RenderChart(&buf, vm, ChartOptions{Kind: "pie"}, "svg"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseChartKind(t *testing.T) {
	if k, ok := ParseChartKind(" Trend "); !ok || k != ChartTrend {
		t.Errorf("ParseChartKind(trend) = %q, %v", k, ok)
	}
	if _, ok := ParseChartKind("pie"); ok {
		t.Error("pie should not parse")
	}
}

func TestNiceMax(t *testing.T) {
	tests := []struct {
		floor float64
		vals  []float64
		want  float64
	}{
		{0, nil, 10},
		{40, []float64{12, 33}, 40},
		{0, []float64{87}, 90},
		{100, []float64{104}, 200},
	}
	for _, tt := range tests {
		if got := niceMax(tt.floor, tt.vals); got != tt.want {
			t.Errorf("niceMax(%v, %v) = %v, want %v", tt.floor, tt.vals, got, tt.want)
		}
	}
}
