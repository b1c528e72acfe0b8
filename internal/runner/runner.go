// Package runner drives the external test runner over an ordered list of targets,
// one target at a time, and classifies each invocation.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/testconductor/internal/models"
	"github.com/harrison/testconductor/internal/procgroup"
)

const (
	// DefaultTestTimeout bounds a single runner invocation when none is configured.
	DefaultTestTimeout = 5 * time.Minute

	// killWaitDelay bounds how long Wait blocks on output copying after a kill.
	killWaitDelay = 2 * time.Second

	interruptedMessage = "run interrupted"
)

// Logger receives per-target progress.
type Logger interface {
	LogDebug(message string)
	LogTargetStart(index, total int, target string)
	LogOutcome(outcome models.TestOutcome)
}

// Config describes how to invoke the runner.
type Config struct {
	Command     []string      // runner argv; the target is appended as the last argument
	WorkDir     string        // runner working directory, targets resolve against it
	TestTimeout time.Duration // per target
	TargetDelay time.Duration // pause between consecutive targets
}

// Driver runs targets sequentially.
type Driver struct {
	cfg    Config
	output io.Writer
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) bool
}

// New creates a Driver. Runner stdout and stderr go to output (discarded when
// nil); logger may be nil.
func New(cfg Config, output io.Writer, logger Logger) *Driver {
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = DefaultTestTimeout
	}
	return &Driver{cfg: cfg, output: output, logger: logger, sleep: sleepCtx}
}

// RunAll runs every target in order and returns exactly one outcome per target,
// in the same order. It never stops early on a failing target. Once ctx is
// cancelled the remaining targets are recorded as skipped.
func (d *Driver) RunAll(ctx context.Context, targets []string, env []string) []models.TestOutcome {
	outcomes := make([]models.TestOutcome, 0, len(targets))

	for i, target := range targets {
		if i > 0 && d.cfg.TargetDelay > 0 && ctx.Err() == nil {
			d.sleep(ctx, d.cfg.TargetDelay)
		}

		if d.logger != nil {
			d.logger.LogTargetStart(i, len(targets), target)
		}

		var outcome models.TestOutcome
		if ctx.Err() != nil {
			outcome = models.TestOutcome{Target: target, Status: models.StatusSkipped, Message: interruptedMessage}
		} else {
			outcome = d.RunTarget(ctx, target, env)
		}

		if d.logger != nil {
			d.logger.LogOutcome(outcome)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// RunTarget runs the runner once for target and classifies the result.
func (d *Driver) RunTarget(ctx context.Context, target string, env []string) models.TestOutcome {
	start := time.Now()
	outcome := models.TestOutcome{Target: target}

	if path, ok := d.resolveTarget(target); !ok {
		outcome.Status = models.StatusSkipped
		outcome.Message = fmt.Sprintf("target not found: %s", path)
		return outcome
	}

	if len(d.cfg.Command) == 0 {
		outcome.Status = models.StatusErrored
		outcome.Message = "empty runner command"
		return outcome
	}

	targetCtx, cancel := context.WithTimeout(ctx, d.cfg.TestTimeout)
	defer cancel()

	args := append(append([]string(nil), d.cfg.Command[1:]...), target)
	cmd := exec.CommandContext(targetCtx, d.cfg.Command[0], args...)
	cmd.Dir = d.cfg.WorkDir
	cmd.Env = env
	if d.output != nil {
		cmd.Stdout = d.output
		cmd.Stderr = d.output
	}
	procgroup.Configure(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }
	cmd.WaitDelay = killWaitDelay

	d.logDebug(fmt.Sprintf("Invoking %s", strings.Join(cmd.Args, " ")))

	if err := cmd.Start(); err != nil {
		outcome.Duration = time.Since(start)
		outcome.Status = models.StatusErrored
		outcome.Message = fmt.Sprintf("failed to start runner: %v", err)
		return outcome
	}

	err := cmd.Wait()
	outcome.Duration = time.Since(start)
	classify(ctx, targetCtx, &outcome, cmd, err, d.cfg.TestTimeout)
	return outcome
}

func classify(parent, target context.Context, o *models.TestOutcome, cmd *exec.Cmd, err error, timeout time.Duration) {
	switch {
	case parent.Err() != nil:
		o.Status = models.StatusErrored
		o.Message = interruptedMessage
		return
	case errors.Is(target.Err(), context.DeadlineExceeded):
		o.Status = models.StatusTimedOut
		o.Message = fmt.Sprintf("exceeded timeout of %s", timeout)
		return
	}

	state := cmd.ProcessState
	if state == nil {
		o.Status = models.StatusErrored
		o.Message = fmt.Sprintf("runner wait failed: %v", err)
		return
	}

	if state.Success() {
		// Exit 0 with output still held open by a leftover child is a pass.
		o.Status = models.StatusPassed
		code := 0
		o.ExitCode = &code
		return
	}

	o.Status = models.StatusFailed
	if code := state.ExitCode(); code >= 0 {
		o.ExitCode = &code
	} else {
		o.Message = state.String()
	}
}

// resolveTarget reports the path a target refers to and whether it exists.
func (d *Driver) resolveTarget(target string) (string, bool) {
	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.cfg.WorkDir, target)
	}
	_, err := os.Stat(path)
	return path, err == nil
}

func (d *Driver) logDebug(msg string) {
	if d.logger != nil {
		d.logger.LogDebug(msg)
	}
}

func sleepCtx(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
