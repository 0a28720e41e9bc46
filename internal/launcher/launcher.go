// Package launcher spawns the compile server as a detached child. The server
// communicates only over its channel, never over inherited console streams,
// so the child gets the null device for stdin/stdout/stderr and its working
// directory is pinned to its own containing directory: relative resource
// lookups inside the server stay stable no matter where the client ran from.
package launcher

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/loykin/hotc/internal/env"
	"github.com/loykin/hotc/internal/identity"
)

// Launcher starts server processes and answers best-effort post-mortem
// queries about the last one it started.
type Launcher struct {
	log  *slog.Logger
	last *exec.Cmd
}

func New(log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{log: log}
}

// Start launches the server executable for id and returns its pid, or 0 when
// process creation failed. Creation failure is logged, never fatal: the
// session falls through to its remaining attempts.
func (l *Launcher) Start(id identity.ServerIdentity) int {
	cmd := exec.Command(id.ServerPath) // #nosec G204 -- path derives from our own install directory
	cmd.Dir = filepath.Dir(id.ServerPath)
	cmd.Env = env.ForServer()
	cmd.SysProcAttr = sysProcAttr()

	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		defer func() { _ = null.Close() }()
		cmd.Stdin = null
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		l.log.Warn("server process creation failed", "path", id.ServerPath, "error", err)
		return 0
	}
	l.last = cmd
	l.log.Debug("server process created", "pid", cmd.Process.Pid)
	return cmd.Process.Pid
}

// ExitState describes what became of a spawned server process.
type ExitState struct {
	Alive    bool
	HasCode  bool
	ExitCode int
}

// ExitState reports whether the server started as pid is still running and,
// when it was ours and already exited, its exit code. Used only to classify
// the terminal failure message.
func (l *Launcher) ExitState(pid int) ExitState {
	if l.last != nil && l.last.Process != nil && l.last.Process.Pid == pid {
		if code, exited := reap(l.last); exited {
			return ExitState{HasCode: true, ExitCode: code}
		}
	}
	return ExitState{Alive: pidAlive(pid)}
}
