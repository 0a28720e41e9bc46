//go:build !windows

package launcher

import (
	"errors"
	"os/exec"
	"syscall"
)

// sysProcAttr detaches the server into its own session so it outlives the
// client and never shares its controlling terminal.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// reap performs a non-blocking wait on our own child to collect its exit
// status without blocking the session.
func reap(cmd *exec.Cmd) (code int, exited bool) {
	if cmd.Process == nil {
		return 0, false
	}
	var ws syscall.WaitStatus
	pid, err := syscall.Wait4(cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
	if err != nil || pid == 0 {
		return 0, false
	}
	if ws.Exited() {
		return ws.ExitStatus(), true
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return 0, false
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
