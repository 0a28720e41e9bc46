//go:build windows

package procscan

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
)

// Principal is the owning security identity of a process: the token user SID
// plus the token elevation flag.
type Principal struct {
	sid      *windows.SID
	Elevated bool
}

// CurrentPrincipal captures the calling process's identity. Called once at
// session start and reused for every candidate comparison.
func CurrentPrincipal() (Principal, error) {
	tok := windows.GetCurrentProcessToken()
	user, err := tok.GetTokenUser()
	if err != nil {
		return Principal{}, fmt.Errorf("query own token user: %w", err)
	}
	return Principal{sid: user.User.Sid, Elevated: tok.IsElevated()}, nil
}

// listPids wraps EnumProcesses, which reports truncation only by filling the
// entire buffer: start small and double until the snapshot fits.
func listPids() ([]int, error) {
	size := 64
	for {
		buf := make([]uint32, size)
		var bytesReturned uint32
		if err := windows.EnumProcesses(buf, &bytesReturned); err != nil {
			return nil, fmt.Errorf("enumerate processes: %w", err)
		}
		n := int(bytesReturned) / 4
		if n < len(buf) {
			out := make([]int, 0, n)
			for _, pid := range buf[:n] {
				out = append(out, int(pid))
			}
			return out, nil
		}
		size *= 2
	}
}

func matches(pid int, serverPath string, self Principal) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(h) }()

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return false
	}
	if !strings.EqualFold(windows.UTF16ToString(buf[:size]), serverPath) {
		return false
	}

	var tok windows.Token
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &tok); err != nil {
		return false
	}
	defer func() { _ = tok.Close() }()
	user, err := tok.GetTokenUser()
	if err != nil || !user.User.Sid.Equals(self.sid) {
		return false
	}
	return tok.IsElevated() == self.Elevated
}
