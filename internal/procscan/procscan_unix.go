//go:build !windows

package procscan

import (
	"fmt"
	"os"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Principal is the owning security identity of a process: the real uid plus
// whether the process runs with effective root privileges (the Unix analogue
// of privilege elevation).
type Principal struct {
	UID      uint32
	Elevated bool
}

// CurrentPrincipal captures the calling process's identity. Called once at
// session start and reused for every candidate comparison.
func CurrentPrincipal() (Principal, error) {
	uid := os.Getuid()
	if uid < 0 {
		return Principal{}, fmt.Errorf("no uid available on this platform")
	}
	return Principal{UID: uint32(uid), Elevated: os.Geteuid() == 0}, nil
}

func listPids() ([]int, error) {
	pids, err := gopsproc.Pids()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	out := make([]int, 0, len(pids))
	for _, pid := range pids {
		out = append(out, int(pid))
	}
	return out, nil
}

func matches(pid int, serverPath string, self Principal) bool {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	exe, err := p.Exe()
	if err != nil || !strings.EqualFold(exe, serverPath) {
		return false
	}
	uids, err := p.Uids()
	if err != nil || len(uids) < 2 {
		return false
	}
	// uids are real, effective, saved; owner is the real uid and elevation is
	// judged by the effective uid.
	if uids[0] != self.UID {
		return false
	}
	return (uids[1] == 0) == self.Elevated
}
