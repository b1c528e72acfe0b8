// Package logger provides logging implementations for conductor runs.
//
// Loggers record run progress at the phase, target and summary levels.
// Implementations are thread-safe and write to the console or to a per-run
// log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/testconductor/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled automatically when writing to a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colour.
// NO_COLOR is honoured through color.NoColor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// statusColor picks the colour for a target status.
func statusColor(status models.TestStatus) *color.Color {
	switch status {
	case models.StatusPassed:
		return color.New(color.FgGreen)
	case models.StatusSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// LogTargetStart logs that a target is about to run at INFO level.
// Format: "[HH:MM:SS] [==        ] 1/4 Running <target>"
func (cl *ConsoleLogger) LogTargetStart(index, total int, target string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	bar := renderProgressBar(index, total, progressWidth)
	if cl.colorOutput {
		bar = color.New(color.FgCyan).Sprint(bar)
	}
	fmt.Fprintf(cl.writer, "[%s] %s Running %s\n", timestamp(), bar, target)
}

// LogOutcome logs the result of a single target at INFO level.
// Format: "[HH:MM:SS] <target>: PASSED (1s)"
func (cl *ConsoleLogger) LogOutcome(outcome models.TestOutcome) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := string(outcome.Status)
	if cl.colorOutput {
		status = statusColor(outcome.Status).Sprint(status)
	}
	fmt.Fprintf(cl.writer, "[%s] %s: %s%s\n", timestamp(), outcome.Target, status, outcomeDetail(outcome))
}

// outcomeDetail renders the exit code, message and duration suffix of an outcome.
func outcomeDetail(o models.TestOutcome) string {
	var parts []string
	if o.ExitCode != nil && o.Status != models.StatusPassed {
		parts = append(parts, fmt.Sprintf("exit %d", *o.ExitCode))
	}
	if o.Message != "" {
		parts = append(parts, o.Message)
	}
	if o.Status != models.StatusSkipped {
		parts = append(parts, formatDuration(o.Duration))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// LogSummary prints the per-target lines, the totals block and the verdict.
// The summary is always printed, regardless of the configured level.
func (cl *ConsoleLogger) LogSummary(report models.RunReport) {
	if cl.writer == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	paint := func(c color.Attribute, s string) string {
		if cl.colorOutput {
			return color.New(c).Sprint(s)
		}
		return s
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(paint(color.Bold, "=== Test Run Summary ==="))
	b.WriteString("\n")

	for _, o := range report.Outcomes {
		mark := paint(color.FgGreen, "PASS")
		if !o.Passed() {
			mark = paint(color.FgRed, "FAIL")
			if o.Status == models.StatusSkipped {
				mark = paint(color.FgYellow, "SKIP")
			}
		}
		fmt.Fprintf(&b, "  %s  %s%s\n", mark, o.Target, outcomeDetail(o))
	}
	if len(report.Outcomes) > 0 {
		b.WriteString("\n")
	}

	s := report.Summary
	fmt.Fprintf(&b, "Total:  %d\n", s.Total)
	b.WriteString(paint(color.FgGreen, fmt.Sprintf("Passed: %d", s.Passed)))
	b.WriteString("\n")
	failed := fmt.Sprintf("Failed: %d", s.NotPassed())
	if s.NotPassed() > 0 {
		failed = paint(color.FgRed, failed)
	}
	b.WriteString(failed)
	b.WriteString("\n")
	if s.TimedOut+s.Skipped+s.Errored > 0 {
		fmt.Fprintf(&b, "  (failed %d, timed out %d, skipped %d, errored %d)\n", s.Failed, s.TimedOut, s.Skipped, s.Errored)
	}
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(report.Duration))

	if len(s.NonPassing) > 0 {
		b.WriteString("Failed targets:\n")
		for _, o := range s.NonPassing {
			fmt.Fprintf(&b, "  - %s: %s\n", o.Target, o.Status)
		}
	}

	b.WriteString(verdictLine(report, paint))
	b.WriteString("\n")

	cl.writer.Write([]byte(b.String()))
}

// verdictLine states the overall result and, on failure, the phase that failed.
func verdictLine(report models.RunReport, paint func(color.Attribute, string) string) string {
	if report.Summary.OverallSuccess && report.Phase == models.PhaseNone {
		return paint(color.FgGreen, "Result: SUCCESS")
	}

	switch report.Phase {
	case models.PhaseNone, models.PhaseTests:
		if report.Error != nil {
			return paint(color.FgRed, fmt.Sprintf("Result: FAILED (tests: %v)", report.Error))
		}
		return paint(color.FgRed, fmt.Sprintf("Result: FAILED (%d of %d targets did not pass)", report.Summary.NotPassed(), report.Summary.Total))
	default:
		return paint(color.FgRed, fmt.Sprintf("Result: FAILED (%s: %v)", report.Phase, report.Error))
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "450ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
