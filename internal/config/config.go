package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database (empty = $CONDUCTOR_HOME/history.db)
	DBPath string `yaml:"db_path"`
}

// RunConfig is the configuration for one conductor invocation.
// It is built once at startup and passed by value; nothing mutates it afterwards.
type RunConfig struct {
	// DatabaseURL is the connection string for the service's persisted state
	DatabaseURL string

	// Port is the port the service listens on
	Port int

	// ProbeTimeout bounds the wait for the health endpoint
	ProbeTimeout time.Duration

	// TestTimeout bounds each test-runner invocation
	TestTimeout time.Duration

	// Targets are the test targets, run in this order
	Targets []string

	// Env is overlaid onto the inherited environment for the service and runner
	Env map[string]string

	// ServiceCommand launches the service under test
	ServiceCommand []string

	// RunnerCommand launches the test runner; the target is appended as the last argument
	RunnerCommand []string

	// WorkDir is the directory both child processes run in
	WorkDir string

	// DataDir holds the placeholder database
	DataDir string

	// LogDir receives the service output log and the conductor run log
	LogDir string

	// ServiceLog is the file name of the service output log inside LogDir
	ServiceLog string

	// HealthPath is polled for readiness
	HealthPath string

	// GracePeriod is how long the service gets to exit after the interrupt signal
	GracePeriod time.Duration

	// PollInterval is the sleep between readiness attempts
	PollInterval time.Duration

	// SettleDelay is slept after the first healthy response
	SettleDelay time.Duration

	// TargetDelay is slept between consecutive targets
	TargetDelay time.Duration

	// RequestTimeout bounds a single health request
	RequestTimeout time.Duration

	// LockWait is how long to wait for another run to release the data
	// directory (0 = fail immediately)
	LockWait time.Duration

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// ReportDir receives summary.md and summary.html (empty = no report)
	ReportDir string

	// History contains run history configuration
	History HistoryConfig

	// Discovery expands directory targets into individual test files
	Discovery DiscoveryConfig
}

// DiscoveryConfig controls target discovery.
type DiscoveryConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Suffixes    []string `yaml:"suffixes"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultConfig returns a RunConfig with the defaults of the local test setup.
func DefaultConfig() *RunConfig {
	return &RunConfig{
		DatabaseURL:    "sqlite://data/debug.db",
		Port:           54125,
		ProbeTimeout:   30 * time.Second,
		TestTimeout:    5 * time.Minute,
		Targets:        []string{"."},
		Env:            map[string]string{"RUST_LOG": "debug"},
		ServiceCommand: []string{"cargo", "run"},
		RunnerCommand:  []string{"bun", "test"},
		WorkDir:        ".",
		DataDir:        "data",
		LogDir:         filepath.Join("services", "test", "logs"),
		ServiceLog:     "conductor.server.log",
		HealthPath:     "/health",
		GracePeriod:    5 * time.Second,
		PollInterval:   500 * time.Millisecond,
		SettleDelay:    time.Second,
		TargetDelay:    time.Second,
		RequestTimeout: 2 * time.Second,
		LogLevel:       "info",
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// yamlConfig mirrors RunConfig with durations as strings.
type yamlConfig struct {
	DatabaseURL    string            `yaml:"database_url"`
	Port           int               `yaml:"port"`
	ProbeTimeout   string            `yaml:"probe_timeout"`
	TestTimeout    string            `yaml:"test_timeout"`
	Targets        []string          `yaml:"targets"`
	Env            map[string]string `yaml:"env"`
	ServiceCommand []string          `yaml:"service_command"`
	RunnerCommand  []string          `yaml:"runner_command"`
	WorkDir        string            `yaml:"work_dir"`
	DataDir        string            `yaml:"data_dir"`
	LogDir         string            `yaml:"log_dir"`
	ServiceLog     string            `yaml:"service_log"`
	HealthPath     string            `yaml:"health_path"`
	GracePeriod    string            `yaml:"grace_period"`
	PollInterval   string            `yaml:"poll_interval"`
	SettleDelay    string            `yaml:"settle_delay"`
	TargetDelay    string            `yaml:"target_delay"`
	RequestTimeout string            `yaml:"request_timeout"`
	LockWait       string            `yaml:"lock_wait"`
	LogLevel       string            `yaml:"log_level"`
	ReportDir      string            `yaml:"report_dir"`
	History        *HistoryConfig    `yaml:"history"`
	Discovery      *DiscoveryConfig  `yaml:"discovery"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*RunConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.DatabaseURL != "" {
		cfg.DatabaseURL = yamlCfg.DatabaseURL
	}
	if yamlCfg.Port != 0 {
		cfg.Port = yamlCfg.Port
	}
	if len(yamlCfg.Targets) > 0 {
		cfg.Targets = yamlCfg.Targets
	}
	// The overlay merges with the defaults key by key
	for k, v := range yamlCfg.Env {
		cfg.Env[k] = v
	}
	if len(yamlCfg.ServiceCommand) > 0 {
		cfg.ServiceCommand = yamlCfg.ServiceCommand
	}
	if len(yamlCfg.RunnerCommand) > 0 {
		cfg.RunnerCommand = yamlCfg.RunnerCommand
	}
	if yamlCfg.WorkDir != "" {
		cfg.WorkDir = yamlCfg.WorkDir
	}
	if yamlCfg.DataDir != "" {
		cfg.DataDir = yamlCfg.DataDir
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.ServiceLog != "" {
		cfg.ServiceLog = yamlCfg.ServiceLog
	}
	if yamlCfg.HealthPath != "" {
		cfg.HealthPath = yamlCfg.HealthPath
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.ReportDir != "" {
		cfg.ReportDir = yamlCfg.ReportDir
	}
	if yamlCfg.History != nil {
		cfg.History = *yamlCfg.History
	}
	if yamlCfg.Discovery != nil {
		cfg.Discovery = *yamlCfg.Discovery
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"probe_timeout", yamlCfg.ProbeTimeout, &cfg.ProbeTimeout},
		{"test_timeout", yamlCfg.TestTimeout, &cfg.TestTimeout},
		{"grace_period", yamlCfg.GracePeriod, &cfg.GracePeriod},
		{"poll_interval", yamlCfg.PollInterval, &cfg.PollInterval},
		{"settle_delay", yamlCfg.SettleDelay, &cfg.SettleDelay},
		{"target_delay", yamlCfg.TargetDelay, &cfg.TargetDelay},
		{"request_timeout", yamlCfg.RequestTimeout, &cfg.RequestTimeout},
		{"lock_wait", yamlCfg.LockWait, &cfg.LockWait},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", d.key, d.value, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .conductor/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*RunConfig, error) {
	configPath := filepath.Join(dir, ".conductor", "config.yaml")
	return LoadConfig(configPath)
}

// FlagOverrides carries CLI flag values; nil fields were not set on the command line.
type FlagOverrides struct {
	Port         *int
	DatabaseURL  *string
	ProbeTimeout *time.Duration
	TestTimeout  *time.Duration
	LockWait     *time.Duration
	Targets      []string
	Env          map[string]string
	LogDir       *string
	LogLevel     *string
	ReportDir    *string
	NoHistory    bool
	Discover     bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *RunConfig) MergeWithFlags(f FlagOverrides) {
	if f.Port != nil {
		c.Port = *f.Port
	}
	if f.DatabaseURL != nil {
		c.DatabaseURL = *f.DatabaseURL
	}
	if f.ProbeTimeout != nil {
		c.ProbeTimeout = *f.ProbeTimeout
	}
	if f.TestTimeout != nil {
		c.TestTimeout = *f.TestTimeout
	}
	if f.LockWait != nil {
		c.LockWait = *f.LockWait
	}
	if len(f.Targets) > 0 {
		c.Targets = f.Targets
	}
	if c.Env == nil && len(f.Env) > 0 {
		c.Env = make(map[string]string, len(f.Env))
	}
	for k, v := range f.Env {
		c.Env[k] = v
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.ReportDir != nil {
		c.ReportDir = *f.ReportDir
	}
	if f.NoHistory {
		c.History.Enabled = false
	}
	if f.Discover {
		c.Discovery.Enabled = true
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *RunConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url cannot be empty")
	}

	if len(c.ServiceCommand) == 0 || c.ServiceCommand[0] == "" {
		return fmt.Errorf("service_command cannot be empty")
	}
	if len(c.RunnerCommand) == 0 || c.RunnerCommand[0] == "" {
		return fmt.Errorf("runner_command cannot be empty")
	}

	for i, target := range c.Targets {
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("targets[%d] cannot be empty", i)
		}
	}

	if !strings.HasPrefix(c.HealthPath, "/") {
		return fmt.Errorf("health_path must start with '/', got %q", c.HealthPath)
	}

	if c.DataDir == "" || c.LogDir == "" || c.ServiceLog == "" {
		return fmt.Errorf("data_dir, log_dir and service_log cannot be empty")
	}

	// Every blocking wait must have a hard deadline
	bounded := []struct {
		key   string
		value time.Duration
	}{
		{"probe_timeout", c.ProbeTimeout},
		{"test_timeout", c.TestTimeout},
		{"grace_period", c.GracePeriod},
		{"poll_interval", c.PollInterval},
		{"request_timeout", c.RequestTimeout},
	}
	for _, b := range bounded {
		if b.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %v", b.key, b.value)
		}
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must be >= 0, got %v", c.SettleDelay)
	}
	if c.TargetDelay < 0 {
		return fmt.Errorf("target_delay must be >= 0, got %v", c.TargetDelay)
	}
	if c.LockWait < 0 {
		return fmt.Errorf("lock_wait must be >= 0, got %v", c.LockWait)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// ResolvePath anchors a relative path at WorkDir, where the child processes run.
func (c RunConfig) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}

// ServiceLogPath returns the path of the service output log.
func (c RunConfig) ServiceLogPath() string {
	return c.ResolvePath(filepath.Join(c.LogDir, c.ServiceLog))
}

// DatabasePath returns the filesystem path behind a sqlite:// DatabaseURL,
// or "" when the URL does not name a local file.
func (c RunConfig) DatabasePath() string {
	path, ok := strings.CutPrefix(c.DatabaseURL, "sqlite://")
	if !ok {
		return ""
	}
	// Strip query parameters such as ?mode=rwc
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return filepath.FromSlash(path)
}

// SortedEnvKeys returns the overlay keys in a stable order.
func (c RunConfig) SortedEnvKeys() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
