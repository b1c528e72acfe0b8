//go:build windows

package procgroup

import (
	"os"
	"os/exec"
)

// Configure is a no-op on Windows.
func Configure(cmd *exec.Cmd) {}

// Windows has no interrupt for other consoles; both paths kill.
func interruptGroup(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func isNoSuchProcess(err error) bool {
	return false
}
