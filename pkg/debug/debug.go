// Package debug provides conditional debug logging and the structured
// application logger for pulse.
//
// Debug logging is enabled by setting the PULSE_DEBUG environment variable:
//
//	PULSE_DEBUG=1 pulse serve
//
// When enabled, debug messages are written to stderr through zap's
// development encoder. When disabled (default), all debug functions are
// no-ops.
//
// Usage:
//
//	import "github.com/vanderheijden86/pulseboard/pkg/debug"
//
//	func myFunc() {
//	    debug.Log("processing %d rows", count)
//	    // ...
//	    debug.LogTiming("myFunc", elapsed)
//	}
package debug

import (
	"os"
	"time"

	"go.uber.org/zap"
)

var (
	// enabled is true when PULSE_DEBUG env var is set
	enabled bool
	// sugar writes debug lines to stderr
	sugar *zap.SugaredLogger
)

func init() {
	if os.Getenv("PULSE_DEBUG") != "" {
		enabled = true
		sugar = newDebugLogger()
	}
}

func newDebugLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Named("PULSE_DEBUG").Sugar()
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && sugar == nil {
		sugar = newDebugLogger()
	}
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	sugar.Debugf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	sugar.Debugw("timing", "op", name, "took", d)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	sugar.Debugf(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    // ...
//	}
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	sugar.Debugf("-> %s", name)
	start := time.Now()
	return func() {
		sugar.Debugf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type for debugging complex structures.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	sugar.Debugf("%s: %T = %+v", name, v, v)
}
