package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/testconductor/internal/config"
)

// addConfigFlags registers the flags that override .conductor/config.yaml.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .conductor/config.yaml)")
	cmd.Flags().Int("port", 0, "Port the service listens on")
	cmd.Flags().String("database-url", "", "Connection string passed to the service as DATABASE_URL")
	cmd.Flags().Duration("probe-timeout", 0, "How long to wait for the health endpoint (e.g. 30s)")
	cmd.Flags().Duration("test-timeout", 0, "Timeout for each test target (e.g. 5m)")
	cmd.Flags().Duration("lock-wait", 0, "Wait this long for another run to release the data directory")
	cmd.Flags().StringToString("env", nil, "Extra environment for the service and runner (KEY=VALUE, repeatable)")
	cmd.Flags().String("log-dir", "", "Directory for the service log and run logs")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("report-dir", "", "Write summary.md and summary.html into this directory")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().Bool("discover", false, "Expand directory targets into individual test files")
}

// loadRunConfig builds the run configuration: defaults, then the config file,
// then flags and positional targets, then validation.
func loadRunConfig(cmd *cobra.Command, args []string) (*config.RunConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.RunConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	overrides := config.FlagOverrides{Targets: args}
	flags := cmd.Flags()

	if flags.Changed("port") {
		port, _ := flags.GetInt("port")
		overrides.Port = &port
	}
	if flags.Changed("database-url") {
		url, _ := flags.GetString("database-url")
		overrides.DatabaseURL = &url
	}
	if flags.Changed("probe-timeout") {
		d, _ := flags.GetDuration("probe-timeout")
		overrides.ProbeTimeout = &d
	}
	if flags.Changed("test-timeout") {
		d, _ := flags.GetDuration("test-timeout")
		overrides.TestTimeout = &d
	}
	if flags.Changed("lock-wait") {
		d, _ := flags.GetDuration("lock-wait")
		overrides.LockWait = &d
	}
	if flags.Changed("env") {
		overrides.Env, _ = flags.GetStringToString("env")
	}
	if flags.Changed("log-dir") {
		dir, _ := flags.GetString("log-dir")
		overrides.LogDir = &dir
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		overrides.LogLevel = &level
	}
	if flags.Changed("report-dir") {
		dir, _ := flags.GetString("report-dir")
		overrides.ReportDir = &dir
	}
	overrides.NoHistory, _ = flags.GetBool("no-history")
	overrides.Discover, _ = flags.GetBool("discover")

	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
