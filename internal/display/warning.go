package display

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/testconductor/internal/filelock"
	"github.com/harrison/testconductor/internal/models"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		if len(w.Files) == 1 {
			b.WriteString("    Related file:\n")
		} else {
			b.WriteString("    Related files:\n")
		}
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	fmt.Fprint(out, color.New(color.FgYellow).Sprint(b.String()))
}

// PhaseFailureWarning explains a run that stopped before or during its test
// phase. It returns nil for runs that completed every phase.
func PhaseFailureWarning(report models.RunReport) *Warning {
	if report.Phase == models.PhaseNone || report.Error == nil {
		return nil
	}

	w := &Warning{Message: report.Error.Error()}

	switch report.Phase {
	case models.PhaseSetup:
		w.Title = "Environment setup failed"
		if errors.Is(report.Error, filelock.ErrLocked) {
			w.Title = "Another conductor run is active"
			w.Suggestion = "Wait for it to finish or point --config at a different data_dir"
			return w
		}
		var setupErr *models.SetupError
		if errors.As(report.Error, &setupErr) && setupErr.Path != "" {
			w.Files = []string{setupErr.Path}
		}
		w.Suggestion = "Check that the work, data and log directories exist and are writable"
	case models.PhaseStartup:
		w.Title = "Service failed to start"
		w.Suggestion = "Check service_command in .conductor/config.yaml and that the executable is installed"
	case models.PhaseReadiness:
		w.Title = "Service never became ready"
		if report.ServiceLog != "" {
			w.Files = []string{report.ServiceLog}
		}
		var readyErr *models.ReadinessError
		if errors.As(report.Error, &readyErr) && readyErr.ServiceExited {
			w.Suggestion = "The service exited early; its log usually shows why"
		} else {
			w.Suggestion = "Inspect the service log, or raise --probe-timeout if the service is slow to boot"
		}
	default:
		if errors.Is(report.Error, models.ErrInterrupted) {
			w.Title = "Run interrupted"
			w.Suggestion = "Targets that did not run are reported as SKIPPED"
		} else {
			w.Title = "Test phase aborted"
		}
	}

	return w
}
