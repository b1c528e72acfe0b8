package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSuffixes are the test file name suffixes matched when none are configured.
var DefaultSuffixes = []string{".test.ts", ".test.js", ".spec.ts", ".spec.js", ".test.tsx", ".test.jsx"}

// DefaultExcludeDirs are never scanned.
var DefaultExcludeDirs = []string{"node_modules", "target", "dist", "build"}

// ScanOptions configures target expansion
type ScanOptions struct {
	// Suffixes a file name must end with to count as a test file
	Suffixes []string
	// ExcludeDirs are directory names skipped at any depth
	ExcludeDirs []string
}

func (o ScanOptions) withDefaults() ScanOptions {
	if len(o.Suffixes) == 0 {
		o.Suffixes = DefaultSuffixes
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	return o
}

// ExpandTargets replaces every directory target with the test files beneath it,
// relative to workDir and sorted. File targets and targets that do not exist are
// kept as given so they still get an outcome. A directory without test files is
// kept as is too. Duplicates are dropped, first occurrence wins.
func ExpandTargets(workDir string, targets []string, opts ScanOptions) ([]string, error) {
	opts = opts.withDefaults()

	expanded := make([]string, 0, len(targets))
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			expanded = append(expanded, t)
		}
	}

	for _, target := range targets {
		path := target
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, target)
		}

		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			add(target)
			continue
		}

		files, err := scanDirectory(path, opts)
		if err != nil {
			return nil, fmt.Errorf("scan target %s: %w", target, err)
		}
		if len(files) == 0 {
			add(target)
			continue
		}
		for _, f := range files {
			if !filepath.IsAbs(target) {
				if rel, err := filepath.Rel(workDir, f); err == nil {
					f = rel
				}
			}
			add(filepath.ToSlash(f))
		}
	}

	return expanded, nil
}

// scanDirectory returns the sorted absolute paths of test files under dir.
func scanDirectory(dir string, opts ScanOptions) ([]string, error) {
	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || exclude[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if hasSuffix(d.Name(), opts.Suffixes) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
