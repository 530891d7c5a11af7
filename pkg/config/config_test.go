package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDataDir, EnvAddr, EnvSeed, EnvLogMode, EnvTrace, EnvTimeframe} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected addr :8000, got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("expected 2 cors origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Dashboard.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Dashboard.Seed)
	}
	if cfg.Timeframe() != trend.Month {
		t.Errorf("expected month timeframe, got %q", cfg.Timeframe())
	}
	if cfg.Thresholds.HoursPerMember <= 0 {
		t.Error("expected thresholds to be populated")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default config, got addr %q", cfg.Server.Addr)
	}
}

func TestLoadFrom_PartialConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	content := `
data:
  dir: ~/pulse-data
  watch: true
  poll_interval: 5s
server:
  addr: ":9090"
dashboard:
  seed: 7
  timeframe: quarter
thresholds:
  hours_per_member: 32
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "pulse-data"); cfg.Data.Dir != want {
		t.Errorf("expected expanded dir %q, got %q", want, cfg.Data.Dir)
	}
	if !cfg.Data.Watch || cfg.Data.PollInterval != 5*time.Second {
		t.Errorf("data section not decoded: %+v", cfg.Data)
	}
	// Unset fields keep their defaults.
	if cfg.Data.Debounce != 200*time.Millisecond {
		t.Errorf("expected default debounce, got %v", cfg.Data.Debounce)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("server section: %+v", cfg.Server)
	}
	if cfg.Dashboard.Seed != 7 || cfg.Timeframe() != trend.Quarter {
		t.Errorf("dashboard section: %+v", cfg.Dashboard)
	}
	if cfg.Thresholds.HoursPerMember != 32 {
		t.Errorf("expected hours_per_member 32, got %v", cfg.Thresholds.HoursPerMember)
	}
	if cfg.Thresholds.MaxInsights <= 0 {
		t.Error("missing thresholds should fall back to defaults")
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dashboard:\n  timeframe: decade\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for unknown timeframe")
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Data.Dir = "/srv/pulse"
	cfg.Dashboard.Sprint = "Sprint 3"
	cfg.Trace.Enabled = true

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Data.Dir != "/srv/pulse" || loaded.Dashboard.Sprint != "Sprint 3" || !loaded.Trace.Enabled {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, "/env/data")
	t.Setenv(EnvAddr, "127.0.0.1:7000")
	t.Setenv(EnvSeed, "99")
	t.Setenv(EnvTrace, "true")
	t.Setenv(EnvTimeframe, "week")

	cfg := ApplyEnvOverrides(DefaultConfig())
	if cfg.Data.Dir != "/env/data" {
		t.Errorf("data dir: %q", cfg.Data.Dir)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("addr: %q", cfg.Server.Addr)
	}
	if cfg.Dashboard.Seed != 99 {
		t.Errorf("seed: %d", cfg.Dashboard.Seed)
	}
	if !cfg.Trace.Enabled {
		t.Error("trace should be enabled")
	}
	if cfg.Timeframe() != trend.Week {
		t.Errorf("timeframe: %q", cfg.Timeframe())
	}
}

func TestApplyEnvOverrides_IgnoresInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSeed, "not-a-number")
	t.Setenv(EnvTrace, "maybe")

	cfg := ApplyEnvOverrides(DefaultConfig())
	if cfg.Dashboard.Seed != 42 {
		t.Errorf("invalid seed should be ignored, got %d", cfg.Dashboard.Seed)
	}
	if cfg.Trace.Enabled {
		t.Error("invalid bool should be ignored")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PULSE_ADDR=:7777\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides a present variable, even an empty one.
	os.Unsetenv(EnvAddr)
	t.Cleanup(func() { os.Unsetenv(EnvAddr) })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvAddr); got != ":7777" {
		t.Errorf("expected PULSE_ADDR from .env, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty timeframe", func(c *Config) { c.Dashboard.Timeframe = "" }, false},
		{"bad timeframe", func(c *Config) { c.Dashboard.Timeframe = "year" }, true},
		{"bad log mode", func(c *Config) { c.Log.Mode = "loud" }, true},
		{"nop log mode", func(c *Config) { c.Log.Mode = "nop" }, false},
		{"bad gin mode", func(c *Config) { c.Server.GinMode = "fast" }, true},
		{"negative poll", func(c *Config) { c.Data.PollInterval = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDirs_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	if got := ConfigDir(); got != "/xdg/config/pulse" {
		t.Errorf("ConfigDir = %q", got)
	}
	if got := ConfigPath(); got != "/xdg/config/pulse/config.yaml" {
		t.Errorf("ConfigPath = %q", got)
	}
	if got := StateDir(); got != "/xdg/state/pulse" {
		t.Errorf("StateDir = %q", got)
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dashboard.Sprint = "Sprint 2"
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	opts := cfg.Options(now)
	if !opts.Now.Equal(now) || opts.Seed != 42 || opts.SprintTitle != "Sprint 2" {
		t.Errorf("options: %+v", opts)
	}
}
