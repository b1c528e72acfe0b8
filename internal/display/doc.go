// Package display renders user-facing terminal output that sits outside the run
// log: warnings explaining why a phase failed and the target check list printed
// by the validate command.
//
// Warnings carry a title, an optional message, related files and a suggestion:
//
//	if w := display.PhaseFailureWarning(report); w != nil {
//	    w.Display(os.Stderr)
//	}
//
// Colours come from github.com/fatih/color and follow its NoColor switch, so
// output is plain when stdout is not a terminal.
package display
