//go:build !windows

package launcher

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/loykin/hotc/internal/identity"
)

// writeServerStub drops an executable shell script under the expected server
// name and returns its identity.
func writeServerStub(t *testing.T, body string) identity.ServerIdentity {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotcd")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700); err != nil {
		t.Fatalf("write server stub: %v", err)
	}
	return identity.ServerIdentity{ServerPath: path, LockName: identity.LockNameFor(path)}
}

func TestStartReturnsLivePid(t *testing.T) {
	l := New(nil)
	pid := l.Start(writeServerStub(t, "sleep 30"))
	if pid == 0 {
		t.Fatalf("Start failed")
	}
	defer func() { _ = syscall.Kill(pid, syscall.SIGKILL) }()

	if !pidAlive(pid) {
		t.Fatalf("spawned pid %d not alive", pid)
	}
	if st := l.ExitState(pid); st.HasCode {
		t.Fatalf("fresh child reported exited: %+v", st)
	}
}

func TestStartFailureReturnsZero(t *testing.T) {
	l := New(nil)
	if pid := l.Start(identity.ServerIdentity{ServerPath: "/definitely/missing/hotcd"}); pid != 0 {
		t.Fatalf("Start of missing executable returned pid %d", pid)
	}
}

func TestExitStateReportsChildExitCode(t *testing.T) {
	l := New(nil)
	pid := l.Start(writeServerStub(t, "exit 7"))
	if pid == 0 {
		t.Fatalf("Start failed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st := l.ExitState(pid)
		if st.HasCode {
			if st.ExitCode != 7 {
				t.Fatalf("exit code: got %d want 7", st.ExitCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("child exit never observed: %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestExitStateForUnknownPid(t *testing.T) {
	l := New(nil)
	st := l.ExitState(1<<22 + 19)
	if st.HasCode {
		t.Fatalf("exit code reported for a process we never started: %+v", st)
	}
}

func TestStartSetsWorkingDirectoryToServerDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("reads /proc")
	}
	l := New(nil)
	id := writeServerStub(t, "sleep 30")
	pid := l.Start(id)
	if pid == 0 {
		t.Fatalf("Start failed")
	}
	defer func() { _ = syscall.Kill(pid, syscall.SIGKILL) }()

	cwd, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/cwd")
	if err != nil {
		t.Fatalf("readlink child cwd: %v", err)
	}
	want, err := filepath.EvalSymlinks(filepath.Dir(id.ServerPath))
	if err != nil {
		t.Fatalf("resolve server dir: %v", err)
	}
	got, err := filepath.EvalSymlinks(cwd)
	if err != nil {
		t.Fatalf("resolve child cwd: %v", err)
	}
	if got != want {
		t.Fatalf("child cwd: got %q want %q", got, want)
	}
}
