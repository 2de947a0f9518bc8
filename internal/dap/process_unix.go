//go:build !windows

package dap

import (
	"os/exec"
	"syscall"
)

// killProcessGroup kills a process and its entire process group.
// On Unix the negative PID signals the whole group.
func killProcessGroup(pid int, cmd *exec.Cmd) error {
	if pid > 0 {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			// ESRCH means the process already terminated
			if err != syscall.ESRCH {
				return err
			}
		}
	} else if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			if err.Error() != "os: process already finished" {
				return err
			}
		}
	}
	return nil
}
