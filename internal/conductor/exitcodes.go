package conductor

import (
	"errors"

	"github.com/harrison/testconductor/internal/models"
)

// Process exit codes:
//
// * Success (0): every target passed
// * TestFailure (1): a target did not pass, or the service never became ready
// * RuntimeErr (2): setup or launch failed before any test could run
// * Interrupted (130): the operator cancelled the run
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
	Interrupted = 130
)

// ExitCodeFor maps a finished run to its process exit code.
func ExitCodeFor(report models.RunReport) int {
	switch {
	case errors.Is(report.Error, models.ErrInterrupted):
		return Interrupted
	case report.Phase == models.PhaseSetup, report.Phase == models.PhaseStartup:
		return RuntimeErr
	case report.Phase == models.PhaseNone && report.Error == nil && report.Summary.OverallSuccess:
		return Success
	default:
		return TestFailure
	}
}
