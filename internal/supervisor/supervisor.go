// Package supervisor owns the lifecycle of the service under test: it starts the
// service with its output redirected to a log file, reports liveness and tears the
// service down with a graceful interrupt followed by a forced kill.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/harrison/testconductor/internal/environment"
	"github.com/harrison/testconductor/internal/models"
	"github.com/harrison/testconductor/internal/procgroup"
)

// DefaultGracePeriod is how long a service gets to exit after the interrupt.
const DefaultGracePeriod = 5 * time.Second

// Logger is the subset of the run logger the supervisor writes to.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// State is the lifecycle state of a Handle.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Supervisor starts service processes.
type Supervisor struct {
	gracePeriod time.Duration
	logger      Logger
}

// New creates a Supervisor. A non-positive grace period falls back to
// DefaultGracePeriod; logger may be nil.
func New(gracePeriod time.Duration, logger Logger) *Supervisor {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &Supervisor{gracePeriod: gracePeriod, logger: logger}
}

// Start launches the service described by env and returns without waiting for it
// to become ready. Combined stdout and stderr go to env.ServiceLog, truncated first.
// ctx only gates the spawn; the running service is torn down by Stop.
func (s *Supervisor) Start(ctx context.Context, env *environment.Environment) (*Handle, error) {
	command := strings.Join(env.ServiceCommand, " ")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(env.ServiceCommand) == 0 {
		return nil, &models.LaunchError{Command: command, Err: errors.New("empty service command")}
	}

	logFile, err := os.OpenFile(env.ServiceLog, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &models.LaunchError{Command: command, Err: fmt.Errorf("open service log: %w", err)}
	}

	cmd := exec.Command(env.ServiceCommand[0], env.ServiceCommand[1:]...)
	cmd.Dir = env.WorkDir
	cmd.Env = env.Vars
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	procgroup.Configure(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, &models.LaunchError{Command: command, Err: err}
	}

	h := &Handle{
		cmd:         cmd,
		command:     command,
		logFile:     logFile,
		logPath:     env.ServiceLog,
		gracePeriod: s.gracePeriod,
		logger:      s.logger,
		state:       StateRunning,
		done:        make(chan struct{}),
	}
	go h.reap()

	h.logInfo(fmt.Sprintf("Started service %q (pid %d), output in %s", command, h.PID(), h.logPath))
	return h, nil
}

// Handle is a running (or finished) service process.
type Handle struct {
	cmd         *exec.Cmd
	command     string
	logFile     *os.File
	logPath     string
	gracePeriod time.Duration
	logger      Logger

	mu      sync.Mutex
	state   State
	waitErr error

	done     chan struct{}
	stopOnce sync.Once
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.waitErr = err
	h.mu.Unlock()
	close(h.done)
}

// PID returns the process ID of the service.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// LogPath returns the path of the service output log.
func (h *Handle) LogPath() string {
	return h.logPath
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsAlive reports whether the service process has not yet exited. It never blocks.
func (h *Handle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed once the service process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the error from waiting on the process. It is nil while the
// process runs or when it exited with status 0.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// Stop tears the service down: interrupt the process group, wait up to the grace
// period, then kill the group and wait for the reap. It is safe to call more than
// once and from any exit path; failures are logged, never returned.
func (h *Handle) Stop() {
	h.stopOnce.Do(h.stop)
}

func (h *Handle) stop() {
	h.setState(StateStopping)
	defer h.setState(StateStopped)
	defer h.closeLog()

	if !h.IsAlive() {
		h.logDebug(fmt.Sprintf("Service (pid %d) already exited: %s", h.PID(), describeExit(h.ExitErr())))
		return
	}

	h.logInfo(fmt.Sprintf("Stopping service (pid %d)", h.PID()))
	if err := procgroup.Interrupt(h.cmd); err != nil && !procgroup.IsFinished(err) {
		h.logWarn(fmt.Sprintf("Failed to interrupt service (pid %d): %v", h.PID(), err))
	}

	timer := time.NewTimer(h.gracePeriod)
	defer timer.Stop()

	select {
	case <-h.done:
		h.logInfo(fmt.Sprintf("Service stopped: %s", describeExit(h.ExitErr())))
		return
	case <-timer.C:
	}

	h.logWarn(fmt.Sprintf("Service (pid %d) did not exit within %s, killing", h.PID(), h.gracePeriod))
	if err := procgroup.Kill(h.cmd); err != nil && !procgroup.IsFinished(err) {
		h.logError(fmt.Sprintf("Failed to kill service (pid %d): %v", h.PID(), err))
	}
	<-h.done
	h.logInfo(fmt.Sprintf("Service killed: %s", describeExit(h.ExitErr())))
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) closeLog() {
	if err := h.logFile.Close(); err != nil {
		h.logWarn(fmt.Sprintf("Failed to close service log %s: %v", h.logPath, err))
	}
}

func describeExit(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

func (h *Handle) logDebug(msg string) {
	if h.logger != nil {
		h.logger.LogDebug(msg)
	}
}

func (h *Handle) logInfo(msg string) {
	if h.logger != nil {
		h.logger.LogInfo(msg)
	}
}

func (h *Handle) logWarn(msg string) {
	if h.logger != nil {
		h.logger.LogWarn(msg)
	}
}

func (h *Handle) logError(msg string) {
	if h.logger != nil {
		h.logger.LogError(msg)
	}
}
