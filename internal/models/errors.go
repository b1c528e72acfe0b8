package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase identifies the stage of a run where a fatal error occurred.
type Phase int

const (
	// PhaseNone means the run completed every phase.
	PhaseNone Phase = iota
	// PhaseSetup covers filesystem and environment preparation.
	PhaseSetup
	// PhaseStartup covers spawning the service process.
	PhaseStartup
	// PhaseReadiness covers waiting for the health endpoint.
	PhaseReadiness
	// PhaseTests covers the test target loop.
	PhaseTests
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseSetup:
		return "setup"
	case PhaseStartup:
		return "startup"
	case PhaseReadiness:
		return "readiness"
	case PhaseTests:
		return "tests"
	default:
		return "unknown"
	}
}

// ErrInterrupted indicates the operator cancelled the run.
var ErrInterrupted = errors.New("run interrupted")

// SetupError reports a failure preparing the filesystem or environment.
// No process has been started when it is returned.
type SetupError struct {
	Op   string // What was being prepared
	Path string // Affected path (optional)
	Err  error  // Underlying error
}

// Error implements the error interface for SetupError.
func (e *SetupError) Error() string {
	var sb strings.Builder
	sb.WriteString("setup: ")
	sb.WriteString(e.Op)
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf(" %s", e.Path))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// LaunchError reports that the service process could not be spawned.
type LaunchError struct {
	Command string // Command line that failed to start
	Err     error  // Underlying error
}

// Error implements the error interface for LaunchError.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ReadinessError reports that the service never answered its health endpoint.
type ReadinessError struct {
	URL           string        // Health URL that was polled
	Timeout       time.Duration // Deadline that elapsed
	ServiceExited bool          // Service process died while waiting
}

// Error implements the error interface for ReadinessError.
func (e *ReadinessError) Error() string {
	if e.ServiceExited {
		return fmt.Sprintf("service exited before %s became ready", e.URL)
	}
	return fmt.Sprintf("service at %s did not become ready within %s", e.URL, e.Timeout)
}

// PhaseOf maps a fatal run error to the phase it belongs to.
// Returns PhaseNone for nil and PhaseTests for anything unrecognised.
func PhaseOf(err error) Phase {
	if err == nil {
		return PhaseNone
	}

	var setupErr *SetupError
	var launchErr *LaunchError
	var readyErr *ReadinessError

	switch {
	case errors.As(err, &setupErr):
		return PhaseSetup
	case errors.As(err, &launchErr):
		return PhaseStartup
	case errors.As(err, &readyErr):
		return PhaseReadiness
	default:
		return PhaseTests
	}
}
