// Package report writes a Markdown summary of a run and its HTML rendering.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/harrison/testconductor/internal/filelock"
	"github.com/harrison/testconductor/internal/models"
)

// File names written into the report directory.
const (
	MarkdownFile = "summary.md"
	HTMLFile     = "summary.html"
)

// Writer renders run reports.
type Writer struct {
	markdown goldmark.Markdown
}

// NewWriter creates a Writer with GitHub-flavoured tables enabled.
func NewWriter() *Writer {
	return &Writer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// Markdown renders report as a Markdown document.
func (w *Writer) Markdown(report models.RunReport) []byte {
	var b bytes.Buffer
	s := report.Summary

	fmt.Fprintf(&b, "# Test Run %s\n\n", report.RunID)
	fmt.Fprintf(&b, "- **Result:** %s\n", verdict(report))
	fmt.Fprintf(&b, "- **Started:** %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- **Exit code:** %d\n", report.ExitCode)
	if report.ServiceLog != "" {
		fmt.Fprintf(&b, "- **Service log:** `%s`\n", report.ServiceLog)
	}
	b.WriteString("\n")

	b.WriteString("## Totals\n\n")
	b.WriteString("| Total | Passed | Failed | Timed out | Skipped | Errored |\n")
	b.WriteString("|------:|-------:|-------:|----------:|--------:|--------:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n", s.Total, s.Passed, s.Failed, s.TimedOut, s.Skipped, s.Errored)

	if len(report.Outcomes) > 0 {
		b.WriteString("## Targets\n\n")
		b.WriteString("| # | Target | Status | Exit | Duration | Message |\n")
		b.WriteString("|--:|--------|--------|-----:|---------:|---------|\n")
		for i, o := range report.Outcomes {
			exit := "-"
			if o.ExitCode != nil {
				exit = fmt.Sprintf("%d", *o.ExitCode)
			}
			fmt.Fprintf(&b, "| %d | `%s` | %s | %s | %s | %s |\n",
				i+1, escapeCell(o.Target), o.Status, exit, o.Duration.Round(time.Millisecond), escapeCell(o.Message))
		}
		b.WriteString("\n")
	}

	if report.Phase != models.PhaseNone && report.Error != nil {
		fmt.Fprintf(&b, "## Failure\n\nThe run stopped in the **%s** phase:\n\n", report.Phase)
		fmt.Fprintf(&b, "```\n%s\n```\n", report.Error)
	}

	return b.Bytes()
}

// HTML converts the Markdown rendering of report into a standalone HTML page.
func (w *Writer) HTML(report models.RunReport) ([]byte, error) {
	var body bytes.Buffer
	if err := w.markdown.Convert(w.Markdown(report), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Test Run %s</title>\n", report.RunID)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Write renders both files into dir and returns their paths.
func (w *Writer) Write(dir string, report models.RunReport) ([]string, error) {
	htmlData, err := w.HTML(report)
	if err != nil {
		return nil, err
	}

	mdPath := filepath.Join(dir, MarkdownFile)
	if err := filelock.AtomicWrite(mdPath, w.Markdown(report)); err != nil {
		return nil, fmt.Errorf("write markdown report: %w", err)
	}
	htmlPath := filepath.Join(dir, HTMLFile)
	if err := filelock.AtomicWrite(htmlPath, htmlData); err != nil {
		return nil, fmt.Errorf("write html report: %w", err)
	}

	return []string{mdPath, htmlPath}, nil
}

func verdict(report models.RunReport) string {
	if report.Summary.OverallSuccess && report.Phase == models.PhaseNone {
		return "SUCCESS"
	}
	if report.Phase != models.PhaseNone && report.Phase != models.PhaseTests {
		return fmt.Sprintf("FAILED (%s)", report.Phase)
	}
	return fmt.Sprintf("FAILED (%d of %d targets did not pass)", report.Summary.NotPassed(), report.Summary.Total)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
