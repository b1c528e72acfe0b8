// Package environment prepares the filesystem and process environment a run needs
// before any child process is spawned.
package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/testconductor/internal/config"
	"github.com/harrison/testconductor/internal/models"
)

// Environment variables always set for the service and the runner.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvPort        = "PORT"
)

// Environment is the prepared baseline for one run.
type Environment struct {
	WorkDir        string   // Directory both child processes run in
	DataDir        string   // Absolute data directory
	LogDir         string   // Absolute log directory
	DatabaseFile   string   // Placeholder database file, "" when the URL is not a local file
	ServiceLog     string   // Path of the service output log
	ServiceCommand []string // Service argv with the executable resolved
	RunnerCommand  []string // Runner argv with the executable resolved
	Vars           []string // KEY=VALUE environment for both child processes
}

// Lookup returns the value of key in Vars, last assignment wins.
func (e *Environment) Lookup(key string) (string, bool) {
	prefix := key + "="
	for i := len(e.Vars) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.Vars[i], prefix) {
			return e.Vars[i][len(prefix):], true
		}
	}
	return "", false
}

// Resolver prepares an Environment from a RunConfig.
type Resolver struct {
	cfg     config.RunConfig
	environ func() []string
	lookup  func(name string) string
}

// NewResolver creates a Resolver that inherits the current process environment.
func NewResolver(cfg config.RunConfig) *Resolver {
	return &Resolver{
		cfg:     cfg,
		environ: os.Environ,
		lookup:  LookupTool,
	}
}

// Prepare creates the data and log directories, the placeholder database file and
// the child environment. It is idempotent: an existing database file is never
// truncated. Every failure is a *models.SetupError.
func (r *Resolver) Prepare() (*Environment, error) {
	workDir, err := filepath.Abs(r.cfg.WorkDir)
	if err != nil {
		return nil, &models.SetupError{Op: "resolve work directory", Path: r.cfg.WorkDir, Err: err}
	}
	if info, err := os.Stat(workDir); err != nil {
		return nil, &models.SetupError{Op: "stat work directory", Path: workDir, Err: err}
	} else if !info.IsDir() {
		return nil, &models.SetupError{Op: "stat work directory", Path: workDir, Err: errors.New("not a directory")}
	}

	anchored := r.cfg
	anchored.WorkDir = workDir

	env := &Environment{
		WorkDir:    workDir,
		DataDir:    anchored.ResolvePath(r.cfg.DataDir),
		LogDir:     anchored.ResolvePath(r.cfg.LogDir),
		ServiceLog: anchored.ServiceLogPath(),
	}

	for _, dir := range []string{env.DataDir, env.LogDir} {
		if err := ensureWritableDir(dir); err != nil {
			return nil, err
		}
	}

	if dbPath := r.cfg.DatabasePath(); dbPath != "" {
		env.DatabaseFile = anchored.ResolvePath(dbPath)
		if err := ensureFile(env.DatabaseFile); err != nil {
			return nil, err
		}
	}

	env.ServiceCommand = r.resolveCommand(r.cfg.ServiceCommand)
	env.RunnerCommand = r.resolveCommand(r.cfg.RunnerCommand)
	env.Vars = r.buildVars()

	return env, nil
}

// resolveCommand replaces a bare executable name with its located path.
// Paths containing a separator are anchored at the work directory by exec itself.
func (r *Resolver) resolveCommand(argv []string) []string {
	resolved := append([]string(nil), argv...)
	if len(resolved) > 0 && !strings.ContainsRune(resolved[0], filepath.Separator) {
		resolved[0] = r.lookup(resolved[0])
	}
	return resolved
}

// buildVars overlays DATABASE_URL, PORT and the configured overlay onto the
// inherited environment. Overlay keys replace inherited ones.
func (r *Resolver) buildVars() []string {
	overlay := map[string]string{
		EnvDatabaseURL: r.cfg.DatabaseURL,
		EnvPort:        strconv.Itoa(r.cfg.Port),
	}
	for k, v := range r.cfg.Env {
		overlay[k] = v
	}

	vars := make([]string, 0, len(overlay)+32)
	for _, kv := range r.environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overlay[key]; replaced {
			continue
		}
		vars = append(vars, kv)
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, k+"="+overlay[k])
	}

	return vars
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.SetupError{Op: "create directory", Path: dir, Err: err}
	}

	probe, err := os.CreateTemp(dir, ".conductor-probe-*")
	if err != nil {
		return &models.SetupError{Op: "directory not writable", Path: dir, Err: err}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return nil
}

// ensureFile creates an empty file at path if none exists.
func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &models.SetupError{Op: "create database directory", Path: filepath.Dir(path), Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return &models.SetupError{Op: "create database file", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &models.SetupError{Op: "create database file", Path: path, Err: fmt.Errorf("close: %w", err)}
	}
	return nil
}
