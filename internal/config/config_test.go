package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DatabaseURL != "sqlite://data/debug.db" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "sqlite://data/debug.db")
	}
	if cfg.Port != 54125 {
		t.Errorf("Port = %d, want 54125", cfg.Port)
	}
	if cfg.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod = %v, want 5s", cfg.GracePeriod)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.SettleDelay != time.Second || cfg.TargetDelay != time.Second {
		t.Errorf("SettleDelay/TargetDelay = %v/%v, want 1s/1s", cfg.SettleDelay, cfg.TargetDelay)
	}
	if !reflect.DeepEqual(cfg.Targets, []string{"."}) {
		t.Errorf("Targets = %v, want [.]", cfg.Targets)
	}
	if cfg.Env["RUST_LOG"] != "debug" {
		t.Errorf("Env[RUST_LOG] = %q, want debug", cfg.Env["RUST_LOG"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `port: 8080
database_url: sqlite://state/test.db
probe_timeout: 10s
test_timeout: 2m
grace_period: 3s
targets:
  - services/test/api.test.ts
  - services/test/auth.test.ts
env:
  API_KEY: secret
service_command: ["./target/release/main"]
runner_command: ["bun", "test", "--bail"]
log_level: debug
report_dir: reports
history:
  enabled: false
discovery:
  enabled: true
  suffixes: [".e2e.ts"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DatabaseURL != "sqlite://state/test.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ProbeTimeout != 10*time.Second {
		t.Errorf("ProbeTimeout = %v, want 10s", cfg.ProbeTimeout)
	}
	if cfg.TestTimeout != 2*time.Minute {
		t.Errorf("TestTimeout = %v, want 2m", cfg.TestTimeout)
	}
	if cfg.GracePeriod != 3*time.Second {
		t.Errorf("GracePeriod = %v, want 3s", cfg.GracePeriod)
	}
	wantTargets := []string{"services/test/api.test.ts", "services/test/auth.test.ts"}
	if !reflect.DeepEqual(cfg.Targets, wantTargets) {
		t.Errorf("Targets = %v, want %v", cfg.Targets, wantTargets)
	}
	// Overlay merges with defaults
	if cfg.Env["API_KEY"] != "secret" || cfg.Env["RUST_LOG"] != "debug" {
		t.Errorf("Env = %v, want API_KEY and RUST_LOG", cfg.Env)
	}
	if !reflect.DeepEqual(cfg.RunnerCommand, []string{"bun", "test", "--bail"}) {
		t.Errorf("RunnerCommand = %v", cfg.RunnerCommand)
	}
	if cfg.ServiceCommand[0] != "./target/release/main" {
		t.Errorf("ServiceCommand = %v", cfg.ServiceCommand)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.ReportDir != "reports" {
		t.Errorf("ReportDir = %q, want reports", cfg.ReportDir)
	}
	if cfg.History.Enabled {
		t.Errorf("History.Enabled = true, want false")
	}
	if !cfg.Discovery.Enabled || !reflect.DeepEqual(cfg.Discovery.Suffixes, []string{".e2e.ts"}) {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	// Untouched values keep their defaults
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want default 500ms", cfg.PollInterval)
	}
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "port: [unclosed", "failed to parse config file"},
		{"bad duration", "probe_timeout: soon", "invalid probe_timeout format"},
		{"bad test timeout", "test_timeout: 5 minutes", "invalid test_timeout format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := LoadConfig(path)
			if err == nil {
				t.Fatalf("LoadConfig() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".conductor"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".conductor", "config.yaml"), []byte("port: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()

	port := 9999
	timeout := 7 * time.Second
	level := "warn"
	cfg.MergeWithFlags(FlagOverrides{
		Port:         &port,
		ProbeTimeout: &timeout,
		Targets:      []string{"one.test.ts"},
		Env:          map[string]string{"EXTRA": "1"},
		LogLevel:     &level,
		NoHistory:    true,
		Discover:     true,
	})

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.ProbeTimeout != 7*time.Second {
		t.Errorf("ProbeTimeout = %v, want 7s", cfg.ProbeTimeout)
	}
	if !reflect.DeepEqual(cfg.Targets, []string{"one.test.ts"}) {
		t.Errorf("Targets = %v", cfg.Targets)
	}
	if cfg.Env["EXTRA"] != "1" || cfg.Env["RUST_LOG"] != "debug" {
		t.Errorf("Env = %v", cfg.Env)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.History.Enabled {
		t.Error("History should be disabled by NoHistory")
	}
	if !cfg.Discovery.Enabled {
		t.Error("Discovery should be enabled by Discover")
	}
	// Unset flags leave values alone
	if cfg.TestTimeout != 5*time.Minute {
		t.Errorf("TestTimeout = %v, want unchanged 5m", cfg.TestTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RunConfig)
		wantErr string
	}{
		{"valid defaults", func(c *RunConfig) {}, ""},
		{"zero port", func(c *RunConfig) { c.Port = 0 }, "port must be between"},
		{"port too large", func(c *RunConfig) { c.Port = 70000 }, "port must be between"},
		{"empty database url", func(c *RunConfig) { c.DatabaseURL = "" }, "database_url"},
		{"empty service command", func(c *RunConfig) { c.ServiceCommand = nil }, "service_command"},
		{"empty runner command", func(c *RunConfig) { c.RunnerCommand = []string{""} }, "runner_command"},
		{"blank target", func(c *RunConfig) { c.Targets = []string{"a", " "} }, "targets[1]"},
		{"relative health path", func(c *RunConfig) { c.HealthPath = "health" }, "health_path"},
		{"unbounded probe", func(c *RunConfig) { c.ProbeTimeout = 0 }, "probe_timeout must be > 0"},
		{"unbounded test", func(c *RunConfig) { c.TestTimeout = 0 }, "test_timeout must be > 0"},
		{"unbounded grace", func(c *RunConfig) { c.GracePeriod = -time.Second }, "grace_period must be > 0"},
		{"negative lock wait", func(c *RunConfig) { c.LockWait = -time.Second }, "lock_wait must be >= 0"},
		{"negative settle", func(c *RunConfig) { c.SettleDelay = -1 }, "settle_delay"},
		{"zero target delay ok", func(c *RunConfig) { c.TargetDelay = 0 }, ""},
		{"bad log level", func(c *RunConfig) { c.LogLevel = "loud" }, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDatabasePath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"sqlite://data/debug.db", filepath.FromSlash("data/debug.db")},
		{"sqlite://data/debug.db?mode=rwc", filepath.FromSlash("data/debug.db")},
		{"sqlite:///abs/state.db", filepath.FromSlash("/abs/state.db")},
		{"sqlite://:memory:", ""},
		{"postgres://localhost/db", ""},
	}

	for _, tt := range tests {
		cfg := RunConfig{DatabaseURL: tt.url}
		if got := cfg.DatabasePath(); got != tt.want {
			t.Errorf("DatabasePath(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestServiceLogPath(t *testing.T) {
	cfg := RunConfig{WorkDir: "/repo", LogDir: "logs", ServiceLog: "server.log"}
	if got := cfg.ServiceLogPath(); got != filepath.Join("/repo", "logs", "server.log") {
		t.Errorf("ServiceLogPath() = %q", got)
	}

	cfg.LogDir = "/var/log/conductor"
	if got := cfg.ServiceLogPath(); got != filepath.Join("/var/log/conductor", "server.log") {
		t.Errorf("ServiceLogPath() with absolute log dir = %q", got)
	}
}
