package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestSummarize(t *testing.T) {
	tests := []struct {
		name        string
		outcomes    []TestOutcome
		wantPassed  int
		wantNotPass []string
		wantSuccess bool
	}{
		{
			name:        "no outcomes is not a success",
			outcomes:    nil,
			wantSuccess: false,
			wantNotPass: []string{},
		},
		{
			name: "all passed",
			outcomes: []TestOutcome{
				{Target: "a.test.ts", Status: StatusPassed, ExitCode: intPtr(0)},
				{Target: "b.test.ts", Status: StatusPassed, ExitCode: intPtr(0)},
				{Target: "c.test.ts", Status: StatusPassed, ExitCode: intPtr(0)},
			},
			wantPassed:  3,
			wantSuccess: true,
			wantNotPass: []string{},
		},
		{
			name: "second target failed",
			outcomes: []TestOutcome{
				{Target: "a.test.ts", Status: StatusPassed},
				{Target: "b.test.ts", Status: StatusFailed, ExitCode: intPtr(1)},
				{Target: "c.test.ts", Status: StatusPassed},
				{Target: "d.test.ts", Status: StatusPassed},
			},
			wantPassed:  3,
			wantSuccess: false,
			wantNotPass: []string{"b.test.ts"},
		},
		{
			name: "skipped counts as not passing",
			outcomes: []TestOutcome{
				{Target: "a.test.ts", Status: StatusPassed},
				{Target: "missing.test.ts", Status: StatusSkipped},
			},
			wantPassed:  1,
			wantSuccess: false,
			wantNotPass: []string{"missing.test.ts"},
		},
		{
			name: "mixed statuses keep target order",
			outcomes: []TestOutcome{
				{Target: "t1", Status: StatusErrored},
				{Target: "t2", Status: StatusTimedOut},
				{Target: "t3", Status: StatusPassed},
				{Target: "t4", Status: StatusFailed},
			},
			wantPassed:  1,
			wantSuccess: false,
			wantNotPass: []string{"t1", "t2", "t4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Summarize(tt.outcomes)

			assert.Equal(t, len(tt.outcomes), summary.Total)
			assert.Equal(t, tt.wantPassed, summary.Passed)
			assert.Equal(t, tt.wantSuccess, summary.OverallSuccess)
			assert.Equal(t, summary.Total-summary.Passed, summary.NotPassed())

			var got []string
			for _, o := range summary.NonPassing {
				got = append(got, o.Target)
			}
			if got == nil {
				got = []string{}
			}
			assert.Equal(t, tt.wantNotPass, got)
		})
	}
}

func TestSummarizeCountsPerStatus(t *testing.T) {
	summary := Summarize([]TestOutcome{
		{Status: StatusPassed},
		{Status: StatusFailed},
		{Status: StatusFailed},
		{Status: StatusTimedOut},
		{Status: StatusSkipped},
		{Status: StatusErrored},
	})

	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Errored)
	assert.Len(t, summary.NonPassing, 5)
}

// OverallSuccess must hold exactly when every outcome passed.
func TestOverallSuccessMatchesAllPassed(t *testing.T) {
	statuses := []TestStatus{StatusPassed, StatusFailed, StatusTimedOut, StatusSkipped, StatusErrored}

	for _, a := range statuses {
		for _, b := range statuses {
			outcomes := []TestOutcome{{Target: "a", Status: a}, {Target: "b", Status: b}}
			allPassed := a == StatusPassed && b == StatusPassed
			assert.Equal(t, allPassed, Summarize(outcomes).OverallSuccess, "statuses %s/%s", a, b)
		}
	}
}
