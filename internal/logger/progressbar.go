package logger

import (
	"fmt"
	"strings"
)

// progressWidth is the number of cells in the target progress bar.
const progressWidth = 10

// renderProgressBar draws "[===       ] 3/10" for current out of total.
func renderProgressBar(current, total, width int) string {
	if width < 1 {
		width = progressWidth
	}

	filled := 0
	if total > 0 {
		filled = (current * width) / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("=", filled), strings.Repeat(" ", width-filled), current, total)
}
