package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/testutil"
)

// isolate keeps user config, state and PULSE_* variables out of a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(config.EnvLogMode, "nop")
	for _, k := range []string{config.EnvDataDir, config.EnvAddr, config.EnvSeed, config.EnvTrace, config.EnvTimeframe} {
		t.Setenv(k, "")
	}
	prev := nowFunc
	nowFunc = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = prev })
}

func pulse(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	isolate(t)
	if code, _, stderr := pulse(t); code != 2 || !strings.Contains(stderr, "Usage: pulse") {
		t.Errorf("no args: code=%d stderr=%q", code, stderr)
	}
	if code, _, stderr := pulse(t, "frobnicate"); code != 2 || !strings.Contains(stderr, `unknown command "frobnicate"`) {
		t.Errorf("unknown: code=%d stderr=%q", code, stderr)
	}
	if code, stdout, _ := pulse(t, "help"); code != 0 || !strings.Contains(stdout, "Commands:") {
		t.Errorf("help: code=%d", code)
	}
	if code, _, _ := pulse(t, "json", "--no-such-flag"); code != 2 {
		t.Errorf("bad flag: code=%d", code)
	}
	if code, _, _ := pulse(t, "json", "--help"); code != 0 {
		t.Errorf("--help: code=%d", code)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := pulse(t, "version")
	if code != 0 || !strings.HasPrefix(stdout, "pulse ") {
		t.Errorf("version: code=%d out=%q", code, stdout)
	}
}

func TestRun_JSON(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)

	code, stdout, stderr := pulse(t, "json", "--data", dir)
	if code != 0 {
		t.Fatalf("json failed: %d %s", code, stderr)
	}
	var vm struct {
		Epics     []json.RawMessage `json:"epics"`
		Timeframe string            `json:"timeframe"`
		Seed      uint64            `json:"seed"`
		Trend     struct {
			Samples []json.RawMessage `json:"samples"`
		} `json:"trend"`
	}
	if err := json.Unmarshal([]byte(stdout), &vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vm.Epics) != 12 || vm.Timeframe != "month" || vm.Seed != 42 || len(vm.Trend.Samples) != 30 {
		t.Errorf("unexpected view-model: epics=%d tf=%s seed=%d samples=%d", len(vm.Epics), vm.Timeframe, vm.Seed, len(vm.Trend.Samples))
	}
}

func TestRun_JSONSectionAndFilters(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)

	code, stdout, stderr := pulse(t, "json", "--data", dir, "--section", "summary", "--team", "Backend", "--timeframe", "week")
	if code != 0 {
		t.Fatalf("json failed: %d %s", code, stderr)
	}
	var sum dashboard.Summary
	if err := json.Unmarshal([]byte(stdout), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Teams != 1 || sum.Timeframe != "week" || len(sum.Criteria.Teams) != 1 {
		t.Errorf("filters not applied: %+v", sum)
	}

	if code, _, stderr := pulse(t, "json", "--data", dir, "--section", "nope"); code != 1 || !strings.Contains(stderr, "Error: unknown --section") {
		t.Errorf("bad section: code=%d stderr=%q", code, stderr)
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)
	tests := [][]string{
		{"json", "--data", dir, "--timeframe", "decade"},
		{"json", "--data", dir, "--seed", "-1"},
		{"chart", "--data", dir, "--kind", "pie"},
		{"json", "--data", filepath.Join(dir, "missing")},
	}
	for _, args := range tests {
		code, _, stderr := pulse(t, args...)
		if code != 1 || !strings.HasPrefix(stderr, "Error: ") {
			t.Errorf("%v: code=%d stderr=%q", args, code, stderr)
		}
	}
}

func TestRun_Report(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)

	code, stdout, stderr := pulse(t, "report", "--data", dir, "--title", "Weekly", "--q", "what are the risks?")
	if code != 0 {
		t.Fatalf("report failed: %d %s", code, stderr)
	}
	for _, want := range []string{"# Weekly", "## Summary", "| **Epics** | 12 |"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q", want)
		}
	}

	out := filepath.Join(t.TempDir(), "report.md")
	if code, _, stderr := pulse(t, "report", "--data", dir, "--out", out); code != 0 {
		t.Fatalf("report --out failed: %s", stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil || !strings.HasPrefix(string(data), "# Portfolio Report") {
		t.Errorf("report file: %v %q", err, data)
	}
}

func TestRun_Insights(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)

	if code, _, stderr := pulse(t, "insights", "--data", dir); code != 2 || !strings.Contains(stderr, "--q") {
		t.Errorf("missing query: code=%d stderr=%q", code, stderr)
	}
	code, stdout, stderr := pulse(t, "insights", "--data", dir, "--q", "how is team capacity?", "--json")
	if code != 0 {
		t.Fatalf("insights failed: %s", stderr)
	}
	var ins struct {
		Query  string   `json:"query"`
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(stdout), &ins); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ins.Query != "how is team capacity?" || len(ins.Topics) == 0 {
		t.Errorf("unexpected insights: %+v", ins)
	}
}

func TestRun_ExportAndChart(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)
	outDir := t.TempDir()

	db := filepath.Join(outDir, "pulse-export.db")
	code, stdout, stderr := pulse(t, "export", "--data", dir, "--out", db)
	if code != 0 {
		t.Fatalf("export failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Exported 12 epics, 3 teams, 30 backlog items, 3 sprints") {
		t.Errorf("export output: %q", stdout)
	}

	svg := filepath.Join(outDir, "trend.svg")
	if code, _, stderr := pulse(t, "chart", "--data", dir, "--kind", "trend", "--out", svg); code != 0 {
		t.Fatalf("chart failed: %s", stderr)
	}
	data, err := os.ReadFile(svg)
	if err != nil || !bytes.Contains(data, []byte("<svg")) {
		t.Errorf("chart file: %v", err)
	}
}

func TestRun_Sources(t *testing.T) {
	isolate(t)
	dir := testutil.TempDataDir(t)

	code, stdout, stderr := pulse(t, "sources", "--data", dir)
	if code != 0 {
		t.Fatalf("sources failed: %s", stderr)
	}
	if !strings.Contains(stdout, "csv") || !strings.Contains(stdout, "selected") {
		t.Errorf("sources output: %q", stdout)
	}

	empty := t.TempDir()
	if code, stdout, _ := pulse(t, "sources", "--data", empty); code != 0 || !strings.Contains(stdout, "No data sources found") {
		t.Errorf("empty dir: code=%d out=%q", code, stdout)
	}
}

func TestRun_Config(t *testing.T) {
	isolate(t)
	code, stdout, _ := pulse(t, "config", "--seed", "7", "--data", "/srv/pulse")
	if code != 0 {
		t.Fatalf("config failed: %d", code)
	}
	if !strings.Contains(stdout, "seed: 7") || !strings.Contains(stdout, "dir: /srv/pulse") {
		t.Errorf("effective config missing overrides:\n%s", stdout)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if code, _, _ := pulse(t, "config", "--timeframe", "quarter", "--write", path); code != 0 {
		t.Fatalf("config --write failed")
	}
	cfg, err := config.LoadFrom(path)
	if err != nil || cfg.Dashboard.Timeframe != "quarter" {
		t.Errorf("written config: %v %+v", err, cfg.Dashboard)
	}
}

func TestFollowChanges_ReloadsOnChange(t *testing.T) {
	dir := testutil.TempDataDir(t)
	w, err := watchData(config.DataConfig{
		Dir:          dir,
		PollInterval: 20 * time.Millisecond,
		Debounce:     10 * time.Millisecond,
		ForcePoll:    true,
	}, debug.Nop())
	if err != nil {
		t.Fatalf("watchData: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- followChanges(ctx, w, debug.Nop(), func(context.Context) error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	raw := testutil.New(testutil.GeneratorConfig{Seed: 3, Teams: []string{"Solo"}, Epics: 2, BacklogItems: 2, Sprints: 1, BaseTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}).Raw()
	testutil.WriteCSVDir(t, dir, raw)

	deadline := time.Now().Add(2 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("expected a reload after the data directory changed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("followChanges returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("followChanges did not stop on cancel")
	}
}

func TestWatchData_FailsBeforeServing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	w, err := watchData(config.DataConfig{Dir: missing, ForcePoll: true}, debug.Nop())
	if err == nil {
		w.Stop()
		t.Fatal("expected an error for a missing data directory")
	}
	if w != nil {
		t.Fatalf("watcher returned alongside error %v", err)
	}
	if !strings.Contains(err.Error(), "gone") {
		t.Fatalf("error %q does not name the directory", err)
	}
}

func TestRun_ExportHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook commands use sh syntax")
	}
	isolate(t)
	dataDir := testutil.TempDataDir(t)
	project := t.TempDir()
	t.Chdir(project)
	if err := os.MkdirAll(filepath.Join(project, ".pulse"), 0o755); err != nil {
		t.Fatal(err)
	}
	hooksFile := filepath.Join(project, ".pulse", "hooks.yaml")
	marker := filepath.Join(project, "posted")

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(hooksFile, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("hooks:\n  post-export:\n    - command: echo \"$PULSE_EXPORT_FORMAT $PULSE_EPIC_COUNT\" > " + marker + "\n")
	out := filepath.Join(project, "report.md")
	if code, _, stderr := pulse(t, "report", "--data", dataDir, "--out", out); code != 0 {
		t.Fatalf("report failed: %s", stderr)
	}
	if data, err := os.ReadFile(marker); err != nil || strings.TrimSpace(string(data)) != "markdown 12" {
		t.Errorf("post-export hook output = %q, %v", data, err)
	}

	write("hooks:\n  pre-export:\n    - name: gate\n      command: exit 3\n")
	db := filepath.Join(project, "blocked.db")
	code, _, stderr := pulse(t, "export", "--data", dataDir, "--out", db)
	if code != 1 || !strings.Contains(stderr, `"gate"`) {
		t.Errorf("pre-export failure: code=%d stderr=%q", code, stderr)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("export should not be written when a pre-export hook fails")
	}

	if code, _, stderr := pulse(t, "export", "--data", dataDir, "--out", db, "--no-hooks"); code != 0 {
		t.Errorf("--no-hooks export failed: %s", stderr)
	}
}
