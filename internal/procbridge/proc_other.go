//go:build !unix

package procbridge

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

// signalGroup has no graceful variant here; both stages kill.
func signalGroup(cmd *exec.Cmd, _ bool) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
