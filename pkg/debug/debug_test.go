package debug

import (
	"testing"
	"time"
)

func TestDisabledFunctionsAreNoops(t *testing.T) {
	SetEnabled(false)
	Log("value %d", 1)
	LogTiming("op", time.Millisecond)
	LogIf(true, "x")
	LogEnterExit("fn")()
	Dump("v", struct{}{})
	if Enabled() {
		t.Fatalf("expected disabled")
	}
}

func TestSetEnabledInitializesLogger(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	if !Enabled() || sugar == nil {
		t.Fatalf("logger not initialized")
	}
	Log("hello %s", "world")
}

func TestNewLoggerModes(t *testing.T) {
	for _, mode := range []string{"", "development", "production", "nop"} {
		l, err := NewLogger(mode)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", mode, err)
		}
		l.With("component", "test").Debug("ok", "mode", mode)
	}
}

func TestGlobalLoggerDefaultsToNop(t *testing.T) {
	if L() == nil {
		t.Fatalf("L() must never be nil")
	}
	l := Nop()
	SetLogger(l)
	if L() != l {
		t.Fatalf("SetLogger did not install logger")
	}
}
