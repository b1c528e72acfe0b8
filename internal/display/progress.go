package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ProgressIndicator prints a numbered check list: one line per item with a
// green tick or red cross, then a one-line total.
type ProgressIndicator struct {
	writer io.Writer
	total  int
	ok     int
	failed int
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(w io.Writer, total int) *ProgressIndicator {
	return &ProgressIndicator{writer: w, total: total}
}

// Start displays the header message
func (p *ProgressIndicator) Start(header string) {
	fmt.Fprintf(p.writer, "%s:\n", header)
}

// Step displays one item: [N/Total] ✓ item, or ✗ item (detail) when it failed.
func (p *ProgressIndicator) Step(item string, err error) {
	n := p.ok + p.failed + 1
	if err == nil {
		p.ok++
		fmt.Fprintf(p.writer, "  [%d/%d] %s %s\n", n, p.total, color.GreenString("✓"), item)
		return
	}
	p.failed++
	fmt.Fprintf(p.writer, "  [%d/%d] %s %s (%v)\n", n, p.total, color.RedString("✗"), item, err)
}

// Complete displays the final tally and reports whether every item passed.
func (p *ProgressIndicator) Complete(noun string) bool {
	if p.failed == 0 {
		fmt.Fprintf(p.writer, "%s %d %s OK\n", color.GreenString("✓"), p.ok, noun)
		return true
	}
	fmt.Fprintf(p.writer, "%s %d of %d %s failed\n", color.RedString("✗"), p.failed, p.total, noun)
	return false
}
