//go:build !windows

package script

import (
	"os/exec"
	"syscall"
)

// configureProcAttr sets up process group isolation so the script and any
// children it spawns can be signaled as a group.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends SIGTERM to the process group.
func terminateProcess(cmd *exec.Cmd) {
	signalGroup(cmd, syscall.SIGTERM)
}

// killProcess sends SIGKILL to the process group.
func killProcess(cmd *exec.Cmd) {
	signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Process may already be gone; fall back to the direct pid.
		_ = cmd.Process.Signal(sig)
		return
	}
	if err := syscall.Kill(-pgid, sig); err != nil && err != syscall.ESRCH {
		_ = cmd.Process.Signal(sig)
	}
}
