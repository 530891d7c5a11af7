package api

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/testutil"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.GinMode = "test"
	return cfg
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store := dashboard.NewStore(testutil.NewDefault().Snapshot())
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(testConfig(), store, opts...)
}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var env ErrorEnvelope
	decode(t, rec, &env)
	if env.Error.Code != code || env.Error.Message == "" {
		t.Errorf("error = %+v, want code %q", env.Error, code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, WithSource(datasource.DataSource{Path: "data", Type: datasource.SourceTypeCSV}))
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Snapshot struct {
			Version uint64 `json:"version"`
			Source  string `json:"source"`
			Epics   int    `json:"epics"`
		} `json:"snapshot"`
	}
	decode(t, rec, &body)
	if body.Status != "healthy" || body.Snapshot.Epics != 12 || body.Snapshot.Version != 1 || body.Snapshot.Source != "data" {
		t.Errorf("unexpected health: %+v", body)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Error("missing request id header")
	}
}

func TestRequestID_Preserved(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var vm struct {
		Timeframe string `json:"timeframe"`
		Seed      uint64 `json:"seed"`
		Summary   struct {
			Epics int `json:"epics"`
			Teams int `json:"teams"`
		} `json:"summary"`
		Trend struct {
			Samples []json.RawMessage `json:"samples"`
		} `json:"trend"`
	}
	decode(t, rec, &vm)
	if vm.Summary.Epics != 12 || vm.Summary.Teams != 3 {
		t.Errorf("summary = %+v", vm.Summary)
	}
	if vm.Timeframe != "month" || len(vm.Trend.Samples) != 30 || vm.Seed != 42 {
		t.Errorf("timeframe=%s samples=%d seed=%d", vm.Timeframe, len(vm.Trend.Samples), vm.Seed)
	}
}

func TestDashboard_QueryParameters(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/dashboard?team=Backend&team=Frontend,Platform&timeframe=week&seed=9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var vm struct {
		Criteria struct {
			Teams []string `json:"teams"`
		} `json:"criteria"`
		Seed  uint64 `json:"seed"`
		Trend struct {
			Samples []json.RawMessage `json:"samples"`
		} `json:"trend"`
	}
	decode(t, rec, &vm)
	if len(vm.Criteria.Teams) != 3 {
		t.Errorf("teams = %v", vm.Criteria.Teams)
	}
	if vm.Seed != 9 || len(vm.Trend.Samples) != 7 {
		t.Errorf("seed=%d samples=%d", vm.Seed, len(vm.Trend.Samples))
	}
}

func TestDashboard_SameSeedSameTrend(t *testing.T) {
	s := newTestServer(t)
	a := do(t, s, http.MethodGet, "/api/trend?seed=5", "")
	b := do(t, s, http.MethodGet, "/api/trend?seed=5", "")
	if a.Code != http.StatusOK || !bytes.Equal(a.Body.Bytes(), b.Body.Bytes()) {
		t.Error("identical requests should return identical trends")
	}
}

func TestDashboard_InvalidParameters(t *testing.T) {
	s := newTestServer(t)
	assertError(t, do(t, s, http.MethodGet, "/api/summary?seed=-1", ""), http.StatusBadRequest, "invalid_seed")
	assertError(t, do(t, s, http.MethodGet, "/api/summary?timeframe=decade", ""), http.StatusBadRequest, "invalid_timeframe")
}

func TestEndpoints_OK(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/", "/api/summary", "/api/dora", "/api/burndown", "/api/risks", "/api/trend", "/api/metrics"} {
		rec := do(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: content type = %q", path, ct)
		}
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := New(testConfig(), dashboard.NewStore(model.Snapshot{}), WithClock(func() time.Time { return fixedNow }))
	rec := do(t, s, http.MethodGet, "/api/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum dashboard.Summary
	decode(t, rec, &sum)
	if sum.Epics != 0 || sum.TotalVelocity != 0 || sum.Risks != 0 {
		t.Errorf("empty summary = %+v", sum)
	}
}

func TestInsights(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/insights?team=Backend", `{"query":"What are the main risks?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Response        string   `json:"response"`
		Insights        []string `json:"insights"`
		Recommendations []string `json:"recommendations"`
		Timestamp       string   `json:"timestamp"`
	}
	decode(t, rec, &body)
	if len(body.Insights) == 0 || !strings.Contains(body.Response, "## Insights") {
		t.Errorf("unexpected insights: %+v", body)
	}
	if body.Timestamp != "2025-01-01T12:00:00Z" {
		t.Errorf("timestamp = %q", body.Timestamp)
	}
}

func TestInsights_BadRequests(t *testing.T) {
	s := newTestServer(t)
	assertError(t, do(t, s, http.MethodPost, "/api/insights", `{"query":"  "}`), http.StatusBadRequest, "missing_query")
	assertError(t, do(t, s, http.MethodPost, "/api/insights", `{not json`), http.StatusBadRequest, "invalid_body")
}

func TestInsights_LegacyQueryPath(t *testing.T) {
	s := newTestServer(t)
	body := `{"query":"How is team capacity?","current_view":"overview"}`
	legacy := do(t, s, http.MethodPost, "/api/llm/query", body)
	if legacy.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", legacy.Code, legacy.Body.String())
	}
	current := do(t, s, http.MethodPost, "/api/insights", body)
	if legacy.Body.String() != current.Body.String() {
		t.Errorf("llm/query body differs from insights:\n%s\n%s", legacy.Body.String(), current.Body.String())
	}
	assertError(t, do(t, s, http.MethodPost, "/api/llm/query", `{"query":""}`), http.StatusBadRequest, "missing_query")
}

func TestModelsAvailable(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/models/available", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Ollama   bool              `json:"ollama_available"`
		OpenAI   bool              `json:"openai_available"`
		Template bool              `json:"template_system"`
		Models   map[string]string `json:"models"`
	}
	decode(t, rec, &body)
	if body.Ollama || body.OpenAI || !body.Template {
		t.Errorf("unexpected availability: %+v", body)
	}
	if body.Models["template"] != "data_analysis_templates" || body.Models["openai"] != "not_configured" {
		t.Errorf("models = %v", body.Models)
	}
}

func TestNotFound(t *testing.T) {
	assertError(t, do(t, newTestServer(t), http.MethodGet, "/api/nope", ""), http.StatusNotFound, "not_found")
}

func TestReload(t *testing.T) {
	smaller := testutil.New(testutil.GeneratorConfig{Seed: 3, Epics: 4, BacklogItems: 5, Sprints: 1}).Snapshot()
	calls := 0
	loader := func(ctx context.Context) (model.Snapshot, datasource.DataSource, error) {
		calls++
		return smaller, datasource.DataSource{Path: "reloaded", Type: datasource.SourceTypeSQLite}, nil
	}
	metrics.SetEnabled(true)
	s := newTestServer(t, WithLoader(loader))
	before := metrics.Reloads.Value()

	rec := do(t, s, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res ReloadResult
	decode(t, rec, &res)
	if res.Version != 2 || res.Source.Path != "reloaded" || calls != 1 {
		t.Errorf("reload result = %+v", res)
	}
	if res.Changes.CountA == res.Changes.CountB {
		t.Errorf("expected record counts to differ: %+v", res.Changes)
	}
	if metrics.Reloads.Value() != before+1 {
		t.Error("reload counter not incremented")
	}

	var health struct {
		Snapshot struct {
			Epics int `json:"epics"`
		} `json:"snapshot"`
	}
	decode(t, do(t, s, http.MethodGet, "/health", ""), &health)
	if health.Snapshot.Epics != 4 {
		t.Errorf("epics after reload = %d", health.Snapshot.Epics)
	}
}

func TestReload_Errors(t *testing.T) {
	assertError(t, do(t, newTestServer(t), http.MethodPost, "/api/reload", ""), http.StatusNotImplemented, "reload_unavailable")

	noSource := func(ctx context.Context) (model.Snapshot, datasource.DataSource, error) {
		return model.Snapshot{}, datasource.DataSource{}, datasource.ErrNoSource
	}
	assertError(t, do(t, newTestServer(t, WithLoader(noSource)), http.MethodPost, "/api/reload", ""), http.StatusNotFound, "no_source")

	failing := func(ctx context.Context) (model.Snapshot, datasource.DataSource, error) {
		return model.Snapshot{}, datasource.DataSource{}, errors.New("disk on fire")
	}
	metrics.SetEnabled(true)
	s := newTestServer(t, WithLoader(failing))
	before := metrics.ReloadErrors.Value()
	assertError(t, do(t, s, http.MethodPost, "/api/reload", ""), http.StatusInternalServerError, "reload_failed")
	if metrics.ReloadErrors.Value() != before+1 {
		t.Error("reload error counter not incremented")
	}
	// the previous snapshot stays in place
	var health struct {
		Snapshot struct {
			Epics int `json:"epics"`
		} `json:"snapshot"`
	}
	decode(t, do(t, s, http.MethodGet, "/health", ""), &health)
	if health.Snapshot.Epics != 12 {
		t.Errorf("epics after failed reload = %d", health.Snapshot.Epics)
	}
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q (status %d)", got, rec.Code)
	}
}

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		all         bool
		credentials bool
		n           int
	}{
		{"none", nil, true, false, 0},
		{"wildcard", []string{"http://a.test", "*"}, true, false, 0},
		{"explicit", []string{"http://a.test", "https://b.test"}, false, true, 2},
		{"invalid dropped", []string{"a.test", "http://b.test"}, false, true, 1},
		{"only invalid", []string{"a.test"}, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := corsConfig(tt.origins)
			if cfg.AllowAllOrigins != tt.all || cfg.AllowCredentials != tt.credentials || len(cfg.AllowOrigins) != tt.n {
				t.Errorf("corsConfig(%v) = all=%v creds=%v origins=%v", tt.origins, cfg.AllowAllOrigins, cfg.AllowCredentials, cfg.AllowOrigins)
			}
		})
	}
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TraceConfig{}, nil)
	if err != nil || shutdown(context.Background()) != nil {
		t.Fatalf("disabled tracing: %v", err)
	}

	var buf bytes.Buffer
	shutdown, err = InitTracing(context.Background(), config.TraceConfig{Enabled: true, ServiceName: "pulse-test"}, &buf)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	cfg := testConfig()
	cfg.Trace.Enabled = true
	cfg.Trace.ServiceName = "pulse-test"
	s := New(cfg, dashboard.NewStore(model.Snapshot{}))
	if rec := do(t, s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "pulse-test") {
		t.Errorf("expected exported span, got %q", buf.String())
	}
}
