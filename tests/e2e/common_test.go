package main_test

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

var pulseBinaryPath string
var pulseBinaryDir string

func TestMain(m *testing.M) {
	// Build the binary once for all tests
	if err := buildPulseOnce(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pulse binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	if pulseBinaryDir != "" {
		_ = os.RemoveAll(pulseBinaryDir)
	}
	os.Exit(code)
}

func buildPulseOnce() error {
	tempDir, err := os.MkdirTemp("", "pulse-e2e-build-*")
	if err != nil {
		return err
	}
	pulseBinaryDir = tempDir

	binName := "pulse"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	binPath := filepath.Join(tempDir, binName)

	cmd := exec.Command("go", "build", "-o", binPath, "../../cmd/pulse")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go build failed: %v\n%s", err, out)
	}

	pulseBinaryPath = binPath
	return nil
}

// pulseEnv isolates the binary from user configuration.
func pulseEnv(t *testing.T, extra ...string) []string {
	t.Helper()
	env := append(os.Environ(),
		"XDG_CONFIG_HOME="+t.TempDir(),
		"XDG_STATE_HOME="+t.TempDir(),
		"PULSE_LOG_MODE=nop",
		"PULSE_DATA_DIR=",
		"PULSE_ADDR=",
	)
	return append(env, extra...)
}

// runPulse runs the binary to completion and returns stdout.
func runPulse(t *testing.T, args ...string) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, pulseBinaryPath, args...)
	cmd.Dir = t.TempDir()
	cmd.Env = pulseEnv(t)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("pulse %v failed: %v\n%s", args, err, stderr.String())
	}
	return out
}

// freeAddr returns a loopback address with a port that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startServer runs `pulse serve` in the background and waits for /health.
func startServer(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())

	cmdArgs := append([]string{"serve", "--addr", addr, "--data", dataDir}, args...)
	cmd := exec.CommandContext(ctx, pulseBinaryPath, cmdArgs...)
	cmd.Dir = t.TempDir()
	cmd.Env = pulseEnv(t, "PULSE_FORCE_POLL=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("start pulse serve: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() { _ = cmd.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			cancel()
			<-done
		}
		cancel()
	})

	base := "http://" + addr
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return base
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not become healthy\n%s", stderr.String())
	return ""
}
