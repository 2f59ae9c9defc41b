//go:build windows

package script

import "os/exec"

// configureProcAttr is a no-op on Windows; there is no process group to set.
func configureProcAttr(_ *exec.Cmd) {}

// terminateProcess kills the process. Windows has no SIGTERM equivalent,
// so graceful and forceful termination collapse into one.
func terminateProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// killProcess kills the process.
func killProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
