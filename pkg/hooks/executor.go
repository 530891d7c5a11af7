package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const waitDelay = 500 * time.Millisecond

// HookResult records one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs the configured hooks for one export.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor for config. A nil config runs nothing.
func NewExecutor(config *Config, ctx ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, context: ctx}
}

// RunPreExport runs the pre-export hooks in order. The first failing hook
// with on_error=fail stops the run and its error is returned.
func (e *Executor) RunPreExport(ctx context.Context) error {
	return e.runPhase(ctx, PreExport, e.config.Hooks.PreExport)
}

// RunPostExport runs the post-export hooks in order. Failures with
// on_error=fail are returned after every hook has run.
func (e *Executor) RunPostExport(ctx context.Context) error {
	return e.runPhase(ctx, PostExport, e.config.Hooks.PostExport)
}

func (e *Executor) runPhase(ctx context.Context, phase HookPhase, hooks []Hook) error {
	var errs []error
	for _, h := range hooks {
		res := e.runHook(ctx, phase, h)
		e.results = append(e.results, res)
		if res.Success || h.OnError == OnErrorContinue {
			continue
		}
		err := fmt.Errorf("%s hook %q failed: %w", phase, h.Name, res.Error)
		if phase == PreExport {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Executor) runHook(ctx context.Context, phase HookPhase, h Hook) HookResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", h.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", h.Command)
	}
	// Children of the shell may hold the output pipes open past a kill.
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := HookResult{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		res.Error = err
	}
	return res
}

// Results returns the results recorded so far, in run order.
func (e *Executor) Results() []HookResult {
	return append([]HookResult(nil), e.results...)
}

// Summary describes the recorded runs, with the stderr of failed hooks.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var sb strings.Builder
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		fmt.Fprintf(&sb, "\n  %s %s: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "\n    stderr: %s", truncate(r.Stderr, 200))
		}
	}
	return fmt.Sprintf("Hooks: %d succeeded, %d failed", ok, failed) + sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// RunHooks loads the hooks of projectDir and returns an executor for them.
// It returns nil without error when noHooks is set or nothing is configured.
func RunHooks(projectDir string, ctx ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithProjectDir(projectDir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}
