package models

import "time"

// TestStatus is the classification of a single test target.
type TestStatus string

// Test target status constants
const (
	StatusPassed   TestStatus = "PASSED"    // Runner exited 0
	StatusFailed   TestStatus = "FAILED"    // Runner exited non-zero
	StatusTimedOut TestStatus = "TIMED_OUT" // Runner exceeded the per-target timeout
	StatusSkipped  TestStatus = "SKIPPED"   // Target did not resolve, or run was interrupted
	StatusErrored  TestStatus = "ERRORED"   // Runner could not be launched
)

// TestOutcome records the result of running a single target.
type TestOutcome struct {
	Target   string        // Target identifier as given in the run configuration
	Status   TestStatus    // Classification
	ExitCode *int          // Runner exit code, nil when the runner never exited on its own
	Message  string        // Cause for Skipped/Errored/TimedOut outcomes
	Duration time.Duration // Wall time spent on the target
}

// Passed reports whether the outcome counts towards overall success.
func (o TestOutcome) Passed() bool {
	return o.Status == StatusPassed
}

// RunSummary aggregates a sequence of outcomes.
type RunSummary struct {
	Total      int
	Passed     int
	Failed     int
	TimedOut   int
	Skipped    int
	Errored    int
	NonPassing []TestOutcome // Non-passing outcomes in target order

	// OverallSuccess is true iff at least one target ran and every outcome passed.
	OverallSuccess bool
}

// NotPassed returns the number of targets that did not pass.
func (s RunSummary) NotPassed() int {
	return s.Total - s.Passed
}

// Summarize computes the RunSummary for outcomes.
// An empty outcome list is not a success: a run that tested nothing proved nothing.
func Summarize(outcomes []TestOutcome) RunSummary {
	summary := RunSummary{
		Total:      len(outcomes),
		NonPassing: []TestOutcome{},
	}

	for _, o := range outcomes {
		switch o.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFailed:
			summary.Failed++
		case StatusTimedOut:
			summary.TimedOut++
		case StatusSkipped:
			summary.Skipped++
		case StatusErrored:
			summary.Errored++
		}
		if !o.Passed() {
			summary.NonPassing = append(summary.NonPassing, o)
		}
	}

	summary.OverallSuccess = summary.Total > 0 && summary.Passed == summary.Total
	return summary
}

// RunReport is the record of one conductor invocation.
type RunReport struct {
	RunID      string        // Unique run identifier
	StartedAt  time.Time     // When the run began
	Duration   time.Duration // Total wall time including teardown
	Phase      Phase         // Phase that failed, PhaseNone on a clean run
	Error      error         // Fatal error that aborted the run, if any
	Outcomes   []TestOutcome // One entry per target, in target order
	Summary    RunSummary    // Aggregate over Outcomes
	ServiceLog string        // Path of the service output log
	ExitCode   int           // Process exit code for this run
}
