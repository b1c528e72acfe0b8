package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/testconductor/internal/config"
	"github.com/harrison/testconductor/internal/history"
	"github.com/harrison/testconductor/internal/models"
)

// NewHistoryCommand creates the 'conductor history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded test runs",
		Long: `List recent runs from the history database, show the outcomes of one run,
or rank targets by how often they pass.

Examples:
  conductor history
  conductor history --limit 50
  conductor history --run 0b6c3f2e-...
  conductor history --targets
  conductor history --prune-days 30`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .conductor/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of rows to show")
	cmd.Flags().String("run", "", "Show the outcomes of this run ID")
	cmd.Flags().Bool("targets", false, "Show per-target pass rates across runs")
	cmd.Flags().Int("prune-days", 0, "Delete runs older than this many days")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.RunConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbPath, err := cfg.GetHistoryDBPath()
	if err != nil {
		return fmt.Errorf("failed to get history database path: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintf(out, "Database path: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	showTargets, _ := cmd.Flags().GetBool("targets")
	pruneDays, _ := cmd.Flags().GetInt("prune-days")

	switch {
	case pruneDays > 0:
		deleted, err := store.PruneRuns(ctx, pruneDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d run(s) older than %d days\n", deleted, pruneDays)
		return nil

	case runID != "":
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		outcomes, err := store.RunOutcomes(ctx, runID)
		if err != nil {
			return err
		}
		displayRun(out, *run, outcomes)
		return nil

	case showTargets:
		stats, err := store.TargetStatistics(ctx, limit)
		if err != nil {
			return err
		}
		displayTargetStats(out, stats)
		return nil

	default:
		runs, err := store.RecentRuns(ctx, limit)
		if err != nil {
			return err
		}
		displayRuns(out, runs)
		return nil
	}
}

func runStatus(r history.RunRecord) string {
	if r.Success {
		return color.GreenString("PASS")
	}
	if r.FailedPhase != "none" {
		return color.RedString("FAIL (%s)", r.FailedPhase)
	}
	return color.RedString("FAIL")
}

func displayRuns(out io.Writer, runs []history.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return
	}

	fmt.Fprintf(out, "%-36s  %-19s  %8s  %7s  %s\n", "RUN ID", "STARTED", "DURATION", "PASSED", "RESULT")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-19s  %8s  %3d/%-3d  %s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Second),
			r.Passed, r.Total,
			runStatus(r),
		)
	}
}

func displayRun(out io.Writer, r history.RunRecord, outcomes []models.TestOutcome) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "Run %s\n", r.RunID)
	fmt.Fprintf(out, "  Started:   %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Duration:  %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Result:    %s (exit code %d)\n", runStatus(r), r.ExitCode)
	if r.Error != "" {
		fmt.Fprintf(out, "  Error:     %s\n", r.Error)
	}
	if r.ServiceLog != "" {
		fmt.Fprintf(out, "  Service:   %s\n", r.ServiceLog)
	}

	if len(outcomes) == 0 {
		fmt.Fprintln(out, "\nNo targets ran.")
		return
	}

	fmt.Fprintln(out)
	for _, o := range outcomes {
		status := string(o.Status)
		switch o.Status {
		case models.StatusPassed:
			status = color.GreenString(status)
		case models.StatusSkipped:
			status = color.YellowString(status)
		default:
			status = color.RedString(status)
		}
		line := fmt.Sprintf("  %-9s  %s", status, o.Target)
		if o.ExitCode != nil && o.Status != models.StatusPassed {
			line += fmt.Sprintf(" (exit %d)", *o.ExitCode)
		}
		if o.Message != "" {
			line += " - " + o.Message
		}
		fmt.Fprintln(out, line)
	}
}

func displayTargetStats(out io.Writer, stats []history.TargetStats) {
	if len(stats) == 0 {
		fmt.Fprintln(out, "No targets recorded yet.")
		return
	}

	fmt.Fprintf(out, "%-40s  %5s  %9s  %8s  %s\n", "TARGET", "RUNS", "PASS RATE", "AVG", "LAST")
	for _, s := range stats {
		rate := fmt.Sprintf("%.0f%%", s.PassRate()*100)
		switch {
		case s.PassRate() == 1:
			rate = color.GreenString("%9s", rate)
		case s.PassRate() >= 0.5:
			rate = color.YellowString("%9s", rate)
		default:
			rate = color.RedString("%9s", rate)
		}
		fmt.Fprintf(out, "%-40s  %5d  %s  %8s  %s\n",
			s.Target, s.Runs, rate, s.AvgDuration.Round(time.Millisecond), s.LastStatus)
	}
}
