package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestProgressIndicator_AllOK(t *testing.T) {
	withColor(t, false)
	var buf bytes.Buffer

	p := NewProgressIndicator(&buf, 2)
	p.Start("Checking targets")
	p.Step("tests/a.test.ts", nil)
	p.Step("tests/b.test.ts", nil)
	ok := p.Complete("targets")

	if !ok {
		t.Error("Expected Complete to report success")
	}
	want := "Checking targets:\n" +
		"  [1/2] ✓ tests/a.test.ts\n" +
		"  [2/2] ✓ tests/b.test.ts\n" +
		"✓ 2 targets OK\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestProgressIndicator_WithFailure(t *testing.T) {
	withColor(t, false)
	var buf bytes.Buffer

	p := NewProgressIndicator(&buf, 2)
	p.Start("Checking targets")
	p.Step("tests/a.test.ts", nil)
	p.Step("tests/missing.test.ts", errors.New("not found"))
	ok := p.Complete("targets")

	if ok {
		t.Error("Expected Complete to report failure")
	}
	output := buf.String()
	if !strings.Contains(output, "  [2/2] ✗ tests/missing.test.ts (not found)\n") {
		t.Errorf("Expected failure line, got:\n%s", output)
	}
	if !strings.Contains(output, "✗ 1 of 2 targets failed\n") {
		t.Errorf("Expected failure tally, got:\n%s", output)
	}
}

func TestProgressIndicator_Colored(t *testing.T) {
	withColor(t, true)
	var buf bytes.Buffer

	p := NewProgressIndicator(&buf, 1)
	p.Step("x", nil)

	if !strings.Contains(buf.String(), "\x1b[32m") {
		t.Errorf("Expected green tick, got %q", buf.String())
	}
}
