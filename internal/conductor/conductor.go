// Package conductor composes the environment resolver, service supervisor,
// readiness prober and test run driver into a single run with guaranteed
// service teardown.
package conductor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/testconductor/internal/config"
	"github.com/harrison/testconductor/internal/environment"
	"github.com/harrison/testconductor/internal/filelock"
	"github.com/harrison/testconductor/internal/fileutil"
	"github.com/harrison/testconductor/internal/logger"
	"github.com/harrison/testconductor/internal/models"
	"github.com/harrison/testconductor/internal/readiness"
	"github.com/harrison/testconductor/internal/report"
	"github.com/harrison/testconductor/internal/runner"
	"github.com/harrison/testconductor/internal/supervisor"
)

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, report models.RunReport) error
}

// Conductor drives one test run.
type Conductor struct {
	cfg          config.RunConfig
	logger       logger.RunLogger
	runnerOutput io.Writer
	history      HistoryRecorder
	reports      *report.Writer
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithRunnerOutput streams the test runner's stdout and stderr to w.
func WithRunnerOutput(w io.Writer) Option {
	return func(c *Conductor) { c.runnerOutput = w }
}

// WithHistory records every finished run with h.
func WithHistory(h HistoryRecorder) Option {
	return func(c *Conductor) { c.history = h }
}

// New creates a Conductor for cfg. cfg must already be validated.
func New(cfg config.RunConfig, log logger.RunLogger, opts ...Option) *Conductor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Conductor{
		cfg:     cfg,
		logger:  log,
		reports: report.NewWriter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs setup, starts the service, waits for readiness, runs every
// target and tears the service down. The service is stopped on every path,
// including cancellation of ctx. The returned report carries the exit code.
func (c *Conductor) Run(ctx context.Context) models.RunReport {
	rep := models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Outcomes:  []models.TestOutcome{},
	}
	c.logger.LogInfo(fmt.Sprintf("Run %s starting with %d target(s)", rep.RunID, len(c.cfg.Targets)))

	outcomes, err := c.execute(ctx, &rep)
	if outcomes != nil {
		rep.Outcomes = outcomes
	}
	rep.Summary = models.Summarize(rep.Outcomes)
	if err != nil {
		rep.Error = err
		if rep.Phase == models.PhaseNone {
			rep.Phase = models.PhaseOf(err)
		}
	}
	rep.ExitCode = ExitCodeFor(rep)
	rep.Duration = time.Since(rep.StartedAt)

	c.logger.LogSummary(rep)
	c.recordHistory(rep)
	c.writeReport(rep)

	return rep
}

// execute runs the phases in order. The service handle and the run lock are
// released by defers before execute returns.
func (c *Conductor) execute(ctx context.Context, rep *models.RunReport) ([]models.TestOutcome, error) {
	env, err := environment.NewResolver(c.cfg).Prepare()
	if err != nil {
		return nil, err
	}
	rep.ServiceLog = env.ServiceLog
	c.logger.LogDebug(fmt.Sprintf("Service command: %s", strings.Join(env.ServiceCommand, " ")))
	c.logger.LogDebug(fmt.Sprintf("Runner command: %s", strings.Join(env.RunnerCommand, " ")))

	targets, err := Targets(c.cfg, env.WorkDir)
	if err != nil {
		return nil, err
	}
	if c.cfg.Discovery.Enabled {
		c.logger.LogInfo(fmt.Sprintf("Discovered %d target(s)", len(targets)))
	}

	lock, err := filelock.WaitRunLock(ctx, env.DataDir, c.cfg.LockWait)
	if err != nil {
		if ctx.Err() != nil {
			rep.Phase = models.PhaseSetup
			return nil, models.ErrInterrupted
		}
		return nil, &models.SetupError{Op: "acquire run lock", Err: err}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.LogWarn(fmt.Sprintf("Failed to release run lock: %v", err))
		}
	}()

	if ctx.Err() != nil {
		rep.Phase = models.PhaseSetup
		return nil, models.ErrInterrupted
	}

	handle, err := supervisor.New(c.cfg.GracePeriod, c.logger).Start(ctx, env)
	if err != nil {
		if ctx.Err() != nil {
			rep.Phase = models.PhaseStartup
			return nil, models.ErrInterrupted
		}
		return nil, err
	}
	defer handle.Stop()

	prober := readiness.New(readiness.Config{
		HealthPath:     c.cfg.HealthPath,
		PollInterval:   c.cfg.PollInterval,
		SettleDelay:    c.cfg.SettleDelay,
		RequestTimeout: c.cfg.RequestTimeout,
	}, c.logger).WithAliveCheck(handle.IsAlive)

	if !prober.WaitUntilReady(ctx, c.cfg.Port, c.cfg.ProbeTimeout) {
		if ctx.Err() != nil {
			rep.Phase = models.PhaseReadiness
			return nil, models.ErrInterrupted
		}
		c.logger.LogError(fmt.Sprintf("Service failed to start properly; see %s", env.ServiceLog))
		return nil, &models.ReadinessError{
			URL:           prober.URL(c.cfg.Port),
			Timeout:       c.cfg.ProbeTimeout,
			ServiceExited: !handle.IsAlive(),
		}
	}

	driver := runner.New(runner.Config{
		Command:     env.RunnerCommand,
		WorkDir:     env.WorkDir,
		TestTimeout: c.cfg.TestTimeout,
		TargetDelay: c.cfg.TargetDelay,
	}, c.runnerOutput, c.logger)

	outcomes := driver.RunAll(ctx, targets, env.Vars)
	if ctx.Err() != nil {
		rep.Phase = models.PhaseTests
		return outcomes, models.ErrInterrupted
	}
	return outcomes, nil
}

// Targets returns the targets a run will execute: the configured ones, with
// directories expanded into test files when discovery is enabled.
func Targets(cfg config.RunConfig, workDir string) ([]string, error) {
	if !cfg.Discovery.Enabled {
		return cfg.Targets, nil
	}
	targets, err := fileutil.ExpandTargets(workDir, cfg.Targets, fileutil.ScanOptions{
		Suffixes:    cfg.Discovery.Suffixes,
		ExcludeDirs: cfg.Discovery.ExcludeDirs,
	})
	if err != nil {
		return nil, &models.SetupError{Op: "discover targets", Path: workDir, Err: err}
	}
	return targets, nil
}

func (c *Conductor) recordHistory(rep models.RunReport) {
	if c.history == nil {
		return
	}
	// The run context may already be cancelled; history is written regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.history.RecordRun(ctx, rep); err != nil {
		c.logger.LogWarn(fmt.Sprintf("Failed to record run history: %v", err))
	}
}

func (c *Conductor) writeReport(rep models.RunReport) {
	if c.cfg.ReportDir == "" {
		return
	}
	paths, err := c.reports.Write(c.cfg.ResolvePath(c.cfg.ReportDir), rep)
	if err != nil {
		c.logger.LogWarn(fmt.Sprintf("Failed to write run report: %v", err))
		return
	}
	c.logger.LogInfo(fmt.Sprintf("Report written to %s", strings.Join(paths, ", ")))
}
