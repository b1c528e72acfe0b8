package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/testconductor/internal/conductor"
	"github.com/harrison/testconductor/internal/config"
	"github.com/harrison/testconductor/internal/display"
	"github.com/harrison/testconductor/internal/history"
	"github.com/harrison/testconductor/internal/logger"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target]...",
		Short: "Start the service and run the test targets against it",
		Long: `Start the service under test, wait until its health endpoint answers,
then run the test runner once per target, in order.

Targets are paths relative to the work directory. Without arguments the
targets from the config file are used (default: ".", the whole suite).
A failing target never stops the run; every target gets an outcome.
With --discover, directory targets are expanded into their test files so
each file is run and reported on its own.

Configuration is loaded from .conductor/config.yaml if present.
CLI flags override configuration file settings.

Exit codes:
  0    every target passed
  1    a target did not pass, or the service never became ready
  2    setup or service launch failed
  130  interrupted

Examples:
  conductor run
  conductor run tests/auth.test.ts tests/users.test.ts
  conductor run --port 6000 --probe-timeout 1m
  conductor run --env RUST_LOG=trace --report-dir reports
  conductor run --discover tests`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommand,
	}

	addConfigFlags(cmd)

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return &ExitError{Code: conductor.RuntimeErr, Err: err}
	}

	out := cmd.OutOrStdout()
	loggers := []logger.RunLogger{logger.NewConsoleLogger(out, cfg.LogLevel)}

	// A missing work dir is reported by setup; the run log must not create it.
	var fileLogger *logger.FileLogger
	if info, err := os.Stat(cfg.WorkDir); err == nil && info.IsDir() {
		fileLogger, err = logger.NewFileLogger(cfg.ResolvePath(cfg.LogDir), cfg.LogLevel)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: run log disabled: %v\n", err)
		} else {
			defer fileLogger.Close()
			loggers = append(loggers, fileLogger)
		}
	}
	runLog := logger.NewMultiLogger(loggers...)

	opts := []conductor.Option{conductor.WithRunnerOutput(out)}
	if cfg.History.Enabled {
		if store, err := openHistory(*cfg); err != nil {
			runLog.LogWarn(fmt.Sprintf("Run history disabled: %v", err))
		} else {
			defer store.Close()
			opts = append(opts, conductor.WithHistory(store))
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := conductor.New(*cfg, runLog, opts...).Run(ctx)

	if w := display.PhaseFailureWarning(report); w != nil {
		w.Display(cmd.ErrOrStderr())
	}
	if fileLogger != nil {
		fmt.Fprintf(out, "Run log: %s\n", fileLogger.Path())
	}

	if report.ExitCode != conductor.Success {
		return &ExitError{Code: report.ExitCode}
	}
	return nil
}

func openHistory(cfg config.RunConfig) (*history.Store, error) {
	dbPath, err := cfg.GetHistoryDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get history database path: %w", err)
	}
	return history.NewStore(dbPath)
}
