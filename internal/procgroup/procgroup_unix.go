//go:build !windows

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Configure makes cmd start as the leader of a new process group.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func interruptGroup(p *os.Process) error {
	return signalGroup(p, unix.SIGINT)
}

func killGroup(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

// signalGroup signals the group led by p, falling back to p alone when the
// group is already gone but the leader is not yet reaped.
func signalGroup(p *os.Process, sig unix.Signal) error {
	if err := unix.Kill(-p.Pid, sig); err == nil {
		return nil
	} else if !errors.Is(err, unix.ESRCH) {
		return err
	}
	return p.Signal(sig)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
