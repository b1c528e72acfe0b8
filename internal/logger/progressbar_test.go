package logger

import "testing"

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		current, total, width int
		want                  string
	}{
		{0, 4, 4, "[    ] 0/4"},
		{2, 4, 4, "[==  ] 2/4"},
		{4, 4, 4, "[====] 4/4"},
		{5, 4, 4, "[====] 5/4"},
		{0, 0, 4, "[    ] 0/0"},
		{1, 2, 0, "[=====     ] 1/2"},
	}

	for _, tt := range tests {
		if got := renderProgressBar(tt.current, tt.total, tt.width); got != tt.want {
			t.Errorf("renderProgressBar(%d, %d, %d) = %q, want %q", tt.current, tt.total, tt.width, got, tt.want)
		}
	}
}
