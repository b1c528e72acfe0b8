package environment

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// knownLocations lists install locations checked when a tool is not on PATH.
// Entries starting with "~" are relative to the user's home directory.
var knownLocations = map[string][]string{
	"cargo": {"~/.cargo/bin/cargo", "/usr/local/cargo/bin/cargo", "/usr/bin/cargo"},
	"bun":   {"~/.bun/bin/bun", "/usr/local/bin/bun", "/usr/bin/bun"},
}

// LookupTool locates an executable by name: PATH first, then the known install
// locations for that tool. When nothing is found the bare name is returned, so
// the spawn step reports the failure with the original name.
func LookupTool(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	home, _ := os.UserHomeDir()
	for _, candidate := range knownLocations[name] {
		if len(candidate) > 1 && candidate[:2] == "~/" {
			if home == "" {
				continue
			}
			candidate = filepath.Join(home, candidate[2:])
		}
		if isExecutable(candidate) {
			return candidate
		}
	}

	return name
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

// ResolveExecutable reports where the executable of argv would be found when
// run from workDir, or an error when it cannot be found.
func ResolveExecutable(workDir string, argv []string) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", fmt.Errorf("empty command")
	}

	name := argv[0]
	if strings.ContainsRune(name, filepath.Separator) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		if !isExecutable(path) {
			return "", fmt.Errorf("%s is not an executable file", path)
		}
		return path, nil
	}

	path := LookupTool(name)
	if path == name {
		return "", fmt.Errorf("%s not found on PATH or in known install locations", name)
	}
	return path, nil
}
