// Package procgroup starts child processes in their own process group so that a
// stop or kill reaches every descendant, not just the direct child.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
)

// ErrNotStarted is returned when signalling a command that has no process.
var ErrNotStarted = errors.New("process not started")

// Interrupt asks the command's process group to exit gracefully.
func Interrupt(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	return interruptGroup(cmd.Process)
}

// Kill forcibly terminates the command's process group.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	return killGroup(cmd.Process)
}

// IsFinished reports whether err from a signal call means the target was already gone.
func IsFinished(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err)
}
