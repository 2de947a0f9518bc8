//go:build !windows

package adapters

import (
	"os/exec"
	"syscall"
)

// setProcAttr sets platform-specific process attributes for spawned debug
// adapters. On Unix, the process becomes a session leader so the entire
// process tree can be killed on termination.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
