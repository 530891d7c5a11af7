package main_test

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/pulseboard/pkg/testutil"
)

type healthResponse struct {
	Status   string `json:"status"`
	Snapshot struct {
		Version uint64 `json:"version"`
		Epics   int    `json:"epics"`
	} `json:"snapshot"`
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func smallRaw() testutil.GeneratorConfig {
	return testutil.GeneratorConfig{
		Seed:         7,
		Teams:        []string{"Solo"},
		Epics:        4,
		BacklogItems: 5,
		Sprints:      1,
		BaseTime:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCLI_JSONAndReport(t *testing.T) {
	dir := testutil.TempDataDir(t)

	var vm struct {
		Epics   []json.RawMessage `json:"epics"`
		Summary struct {
			Teams int `json:"teams"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(runPulse(t, "json", "--data", dir), &vm); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(vm.Epics) != 12 || vm.Summary.Teams != 3 {
		t.Errorf("epics=%d teams=%d", len(vm.Epics), vm.Summary.Teams)
	}

	report := string(runPulse(t, "report", "--data", dir, "--team", "Backend"))
	if !strings.Contains(report, "# Portfolio Report") || !strings.Contains(report, "team=Backend") {
		t.Errorf("unexpected report:\n%s", report)
	}
}

func TestCLI_Export(t *testing.T) {
	dir := testutil.TempDataDir(t)
	out := filepath.Join(t.TempDir(), "export.db")
	msg := string(runPulse(t, "export", "--data", dir, "--out", out))
	if !strings.Contains(msg, "Exported 12 epics") {
		t.Errorf("export output: %q", msg)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), "meta.json")); err != nil {
		t.Errorf("meta json missing: %v", err)
	}
}

func TestServe_HealthAndReload(t *testing.T) {
	dir := testutil.TempDataDir(t)
	base := startServer(t, dir)

	var h healthResponse
	if code := getJSON(t, base+"/health", &h); code != http.StatusOK || h.Status != "healthy" || h.Snapshot.Epics != 12 {
		t.Fatalf("health: code=%d %+v", code, h)
	}

	testutil.WriteCSVDir(t, dir, testutil.New(smallRaw()).Raw())
	resp, err := http.Post(base+"/api/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}

	getJSON(t, base+"/health", &h)
	if h.Snapshot.Epics != 4 || h.Snapshot.Version < 2 {
		t.Errorf("after reload: %+v", h)
	}
}

func TestServe_WatchReloadsOnChange(t *testing.T) {
	dir := testutil.TempDataDir(t)
	base := startServer(t, dir, "--watch")

	testutil.WriteCSVDir(t, dir, testutil.New(smallRaw()).Raw())

	var h healthResponse
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		getJSON(t, base+"/health", &h)
		if h.Snapshot.Epics == 4 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("watcher did not reload the snapshot: %+v", h)
}

func TestServe_ErrorEnvelope(t *testing.T) {
	base := startServer(t, testutil.TempDataDir(t))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if code := getJSON(t, base+"/api/dashboard?timeframe=decade", &body); code != http.StatusBadRequest || body.Error.Code != "invalid_timeframe" {
		t.Errorf("code=%d body=%+v", code, body)
	}
}
