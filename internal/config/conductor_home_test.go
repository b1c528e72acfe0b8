package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestGetConductorHomeWithEnvVar tests CONDUCTOR_HOME env var takes precedence
func TestGetConductorHomeWithEnvVar(t *testing.T) {
	customHome := filepath.Join(t.TempDir(), "home")
	t.Setenv("CONDUCTOR_HOME", customHome)

	home, err := GetConductorHome()
	if err != nil {
		t.Fatalf("GetConductorHome() error = %v", err)
	}
	if home != customHome {
		t.Errorf("GetConductorHome() = %q, want %q", home, customHome)
	}
	if _, err := os.Stat(customHome); err != nil {
		t.Errorf("home directory not created: %v", err)
	}
}

// TestGetConductorHomeFromMarker tests the .conductor-root marker lookup
func TestGetConductorHomeFromMarker(t *testing.T) {
	t.Setenv("CONDUCTOR_HOME", "")

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".conductor-root"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "services", "test")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	home, err := GetConductorHome()
	if err != nil {
		t.Fatalf("GetConductorHome() error = %v", err)
	}
	if want := filepath.Join(root, ".conductor"); home != want {
		t.Errorf("GetConductorHome() = %q, want %q", home, want)
	}
}

func TestGetHistoryDBPath(t *testing.T) {
	customHome := t.TempDir()
	t.Setenv("CONDUCTOR_HOME", customHome)

	cfg := DefaultConfig()
	path, err := cfg.GetHistoryDBPath()
	if err != nil {
		t.Fatalf("GetHistoryDBPath() error = %v", err)
	}
	if want := filepath.Join(customHome, "history.db"); path != want {
		t.Errorf("GetHistoryDBPath() = %q, want %q", path, want)
	}

	cfg.History.DBPath = "/tmp/explicit.db"
	path, err = cfg.GetHistoryDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/explicit.db" {
		t.Errorf("explicit db_path ignored, got %q", path)
	}
}
