package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/testconductor/internal/conductor"
	"github.com/harrison/testconductor/internal/config"
	"github.com/harrison/testconductor/internal/display"
	"github.com/harrison/testconductor/internal/environment"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [target]...",
		Short: "Check configuration, commands and targets without running anything",
		Long: `Validate loads the configuration the same way run does, then checks that
the service and runner executables can be found and that every target
exists under the work directory. Nothing is started or created.

Exits non-zero if any check fails.`,
		Args: cobra.ArbitraryArgs,
		RunE: validateCommand,
	}

	addConfigFlags(cmd)

	return cmd
}

// validateCommand implements the validate command logic
func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return &ExitError{Code: conductor.RuntimeErr, Err: err}
	}

	out := cmd.OutOrStdout()
	printConfig(cmd, *cfg)

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return &ExitError{Code: conductor.RuntimeErr, Err: fmt.Errorf("resolve work directory: %w", err)}
	}

	commands := display.NewProgressIndicator(out, 2)
	commands.Start("Checking commands")
	for _, argv := range [][]string{cfg.ServiceCommand, cfg.RunnerCommand} {
		path, err := environment.ResolveExecutable(workDir, argv)
		label := strings.Join(argv, " ")
		if err == nil && path != argv[0] {
			label = fmt.Sprintf("%s (%s)", label, path)
		}
		commands.Step(label, err)
	}
	commandsOK := commands.Complete("commands")

	resolved, err := conductor.Targets(*cfg, workDir)
	if err != nil {
		return &ExitError{Code: conductor.RuntimeErr, Err: err}
	}
	targets := display.NewProgressIndicator(out, len(resolved))
	targets.Start("Checking targets")
	for _, target := range resolved {
		targets.Step(target, checkTarget(workDir, target))
	}
	targetsOK := targets.Complete("targets")

	if !commandsOK || !targetsOK {
		return &ExitError{Code: conductor.RuntimeErr, Err: errors.New("validation failed")}
	}
	return nil
}

func checkTarget(workDir, target string) error {
	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, target)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("not found")
		}
		return err
	}
	return nil
}

func printConfig(cmd *cobra.Command, cfg config.RunConfig) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Database URL:   %s\n", cfg.DatabaseURL)
	fmt.Fprintf(out, "  Port:           %d\n", cfg.Port)
	fmt.Fprintf(out, "  Health:         %s\n", cfg.HealthPath)
	fmt.Fprintf(out, "  Probe timeout:  %s\n", cfg.ProbeTimeout)
	fmt.Fprintf(out, "  Test timeout:   %s\n", cfg.TestTimeout)
	fmt.Fprintf(out, "  Service log:    %s\n", cfg.ServiceLogPath())
	for _, key := range cfg.SortedEnvKeys() {
		fmt.Fprintf(out, "  Env:            %s=%s\n", key, cfg.Env[key])
	}
	fmt.Fprintln(out)
}
