package logger

import "github.com/harrison/testconductor/internal/models"

// RunLogger is implemented by ConsoleLogger and FileLogger.
type RunLogger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogTargetStart(index, total int, target string)
	LogOutcome(outcome models.TestOutcome)
	LogSummary(report models.RunReport)
}

// MultiLogger fans every call out to each wrapped logger in order.
type MultiLogger struct {
	loggers []RunLogger
}

// NewMultiLogger creates a MultiLogger; nil loggers are dropped.
func NewMultiLogger(loggers ...RunLogger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogTargetStart(index, total int, target string) {
	for _, l := range m.loggers {
		l.LogTargetStart(index, total, target)
	}
}

func (m *MultiLogger) LogOutcome(outcome models.TestOutcome) {
	for _, l := range m.loggers {
		l.LogOutcome(outcome)
	}
}

func (m *MultiLogger) LogSummary(report models.RunReport) {
	for _, l := range m.loggers {
		l.LogSummary(report)
	}
}

// NoOpLogger is a RunLogger that discards all messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string)                 {}
func (n *NoOpLogger) LogDebug(string)                 {}
func (n *NoOpLogger) LogInfo(string)                  {}
func (n *NoOpLogger) LogWarn(string)                  {}
func (n *NoOpLogger) LogError(string)                 {}
func (n *NoOpLogger) LogTargetStart(int, int, string) {}
func (n *NoOpLogger) LogOutcome(models.TestOutcome)   {}
func (n *NoOpLogger) LogSummary(models.RunReport)     {}
