//go:build unix

package procbridge

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup starts the child in its own group so grandchildren
// spawned by the package manager are terminated with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, kill bool) error {
	if cmd.Process == nil {
		return nil
	}
	sig := unix.SIGTERM
	if kill {
		sig = unix.SIGKILL
	}
	if err := unix.Kill(-cmd.Process.Pid, sig); err != nil && err != unix.ESRCH {
		return cmd.Process.Signal(sig)
	}
	return nil
}
