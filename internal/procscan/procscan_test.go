package procscan

import (
	"os"
	"testing"
)

func TestPidsIncludesSelf(t *testing.T) {
	s := New(nil)
	pids, err := s.Pids()
	if err != nil {
		t.Fatalf("Pids: %v", err)
	}
	self := os.Getpid()
	for _, pid := range pids {
		if pid == self {
			return
		}
	}
	t.Fatalf("snapshot of %d pids does not contain own pid %d", len(pids), self)
}

func TestMatchesOwnProcessByImagePath(t *testing.T) {
	// The test binary itself is a live process whose image path, owner, and
	// elevation are all known: it must match its own identity.
	self, err := CurrentPrincipal()
	if err != nil {
		t.Fatalf("CurrentPrincipal: %v", err)
	}
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	s := New(nil)
	if !s.Matches(os.Getpid(), exe, self) {
		t.Fatalf("own process did not match its own image path %q", exe)
	}
}

func TestMatchesRejectsWrongImagePath(t *testing.T) {
	self, err := CurrentPrincipal()
	if err != nil {
		t.Fatalf("CurrentPrincipal: %v", err)
	}
	s := New(nil)
	if s.Matches(os.Getpid(), "/definitely/not/the/server/hotcd", self) {
		t.Fatalf("matched a process with the wrong image path")
	}
}

func TestMatchesRejectsDeadOrInvalidPid(t *testing.T) {
	self, err := CurrentPrincipal()
	if err != nil {
		t.Fatalf("CurrentPrincipal: %v", err)
	}
	exe, _ := os.Executable()
	s := New(nil)
	if s.Matches(0, exe, self) {
		t.Fatalf("pid 0 matched")
	}
	if s.Matches(-1, exe, self) {
		t.Fatalf("negative pid matched")
	}
	// A pid far outside the default pid range; if it exists it is certainly
	// not this test binary.
	if s.Matches(1<<22+17, exe, self) {
		t.Fatalf("implausible pid matched")
	}
}

func TestMatchesRejectsDifferentPrincipal(t *testing.T) {
	self, err := CurrentPrincipal()
	if err != nil {
		t.Fatalf("CurrentPrincipal: %v", err)
	}
	exe, _ := os.Executable()
	other := self
	other.Elevated = !self.Elevated
	s := New(nil)
	if s.Matches(os.Getpid(), exe, other) {
		t.Fatalf("matched despite differing elevation state")
	}
}
