// Package config handles loading and saving pulse configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/pulse/config.yaml
//   - State:   ~/.local/state/pulse/ (exports, last criteria)
//
// A .env file in the working directory is loaded first; PULSE_* environment
// variables then override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvDataDir   = "PULSE_DATA_DIR"
	EnvAddr      = "PULSE_ADDR"
	EnvSeed      = "PULSE_SEED"
	EnvLogMode   = "PULSE_LOG_MODE"
	EnvTrace     = "PULSE_TRACE"
	EnvTimeframe = "PULSE_TIMEFRAME"
)

// DataConfig locates the snapshot and controls refresh.
type DataConfig struct {
	Dir          string        `yaml:"dir,omitempty"`
	Watch        bool          `yaml:"watch,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr,omitempty"`
	CORSOrigins  []string      `yaml:"cors_origins,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	GinMode      string        `yaml:"gin_mode,omitempty"` // debug, release, test
}

// LogConfig selects the logger backend.
type LogConfig struct {
	Mode string `yaml:"mode,omitempty"` // dev, production, nop
}

// TraceConfig enables OpenTelemetry tracing of API requests.
type TraceConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
	Pretty      bool   `yaml:"pretty,omitempty"`
}

// DashboardConfig holds the default aggregation inputs.
type DashboardConfig struct {
	Seed           uint64  `yaml:"seed,omitempty"`
	Timeframe      string  `yaml:"timeframe,omitempty"` // week, month, quarter
	Sprint         string  `yaml:"sprint,omitempty"`
	TrendAmplitude float64 `yaml:"trend_amplitude,omitempty"`
	TrendDrift     float64 `yaml:"trend_drift,omitempty"`
}

// Config is the top-level configuration for pulse.
type Config struct {
	Data       DataConfig          `yaml:"data,omitempty"`
	Server     ServerConfig        `yaml:"server,omitempty"`
	Log        LogConfig           `yaml:"log,omitempty"`
	Trace      TraceConfig         `yaml:"trace,omitempty"`
	Dashboard  DashboardConfig     `yaml:"dashboard,omitempty"`
	Thresholds analysis.Thresholds `yaml:"thresholds,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Dir:          "data",
			PollInterval: 2 * time.Second,
			Debounce:     200 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			CORSOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			GinMode:      "release",
		},
		Log: LogConfig{Mode: "dev"},
		Trace: TraceConfig{
			ServiceName: "pulseboard",
		},
		Dashboard: DashboardConfig{
			Seed:      42,
			Timeframe: string(trend.Month),
		},
		Thresholds: analysis.DefaultThresholds(),
	}
}

// ConfigDir returns the XDG config directory for pulse.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pulse")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pulse")
}

// StateDir returns the XDG state directory for pulse.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pulse")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "pulse")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads .env, the config file from the XDG config directory, and
// environment overrides. Returns defaults if no file exists.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads .env, config from a specific path, and environment
// overrides. An empty path or a missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return DefaultConfig(), err
	}
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg.Data.Dir = expandHome(cfg.Data.Dir)
	cfg = ApplyEnvOverrides(cfg)
	cfg.Thresholds = cfg.Thresholds.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies PULSE_* environment variables to cfg.
// Invalid values are ignored.
func ApplyEnvOverrides(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Data.Dir = expandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSeed)); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Dashboard.Seed = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogMode)); v != "" {
		cfg.Log.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTrace)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trace.Enabled = b
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeframe)); v != "" {
		cfg.Dashboard.Timeframe = v
	}
	cfg.Thresholds = analysis.ApplyEnvOverrides(cfg.Thresholds)
	return cfg
}

// Validate reports configuration values that cannot be used.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Dashboard.Timeframe) {
	case "", string(trend.Week), string(trend.Month), string(trend.Quarter):
	default:
		errs = append(errs, fmt.Errorf("dashboard.timeframe: unknown value %q", c.Dashboard.Timeframe))
	}
	switch strings.ToLower(c.Log.Mode) {
	case "", "dev", "development", "prod", "production", "nop", "off":
	default:
		errs = append(errs, fmt.Errorf("log.mode: unknown value %q", c.Log.Mode))
	}
	switch c.Server.GinMode {
	case "", "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.gin_mode: unknown value %q", c.Server.GinMode))
	}
	if c.Data.PollInterval < 0 || c.Data.Debounce < 0 {
		errs = append(errs, errors.New("data: intervals must not be negative"))
	}
	return errors.Join(errs...)
}

// Timeframe returns the configured default timeframe.
func (c Config) Timeframe() trend.Timeframe {
	return trend.ParseTimeframe(c.Dashboard.Timeframe)
}

// Options returns the aggregation options for an evaluation at now.
func (c Config) Options(now time.Time) dashboard.Options {
	return dashboard.Options{
		Now:            now,
		Seed:           c.Dashboard.Seed,
		Thresholds:     c.Thresholds,
		SprintTitle:    c.Dashboard.Sprint,
		TrendAmplitude: c.Dashboard.TrendAmplitude,
		TrendDrift:     c.Dashboard.TrendDrift,
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
