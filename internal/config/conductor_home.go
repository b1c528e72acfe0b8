package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetConductorHome returns the conductor home directory
// Priority order:
//  1. CONDUCTOR_HOME environment variable (if set)
//  2. Nearest ancestor directory containing a .conductor-root marker
//  3. Current working directory (fallback)
//
// The directory is created if it doesn't exist
func GetConductorHome() (string, error) {
	if home := os.Getenv("CONDUCTOR_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create conductor home directory: %w", err)
		}
		return home, nil
	}

	base, err := findConductorRoot()
	if err != nil {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		base = cwd
	}

	conductorHome := filepath.Join(base, ".conductor")
	if err := os.MkdirAll(conductorHome, 0755); err != nil {
		return "", fmt.Errorf("create conductor home directory: %w", err)
	}

	return conductorHome, nil
}

// findConductorRoot walks up from the working directory looking for a .conductor-root marker
func findConductorRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".conductor-root")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("conductor root not found (looking for .conductor-root)")
}

// GetHistoryDBPath returns the path of the run history database.
// An explicit history.db_path wins; otherwise $CONDUCTOR_HOME/history.db.
func (c RunConfig) GetHistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}

	home, err := GetConductorHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "history.db"), nil
}
