// Package procscan enumerates live processes and filters compile-server
// candidates. A candidate qualifies only when its image path equals the
// expected server path (case-insensitively), it is owned by the same
// principal as the caller, and it runs at the same privilege elevation.
// Transient process churn (a candidate exiting between enumeration and
// inspection, or access being denied) is never an error; such candidates
// simply do not match.
package procscan

import "log/slog"

// Scanner provides process enumeration and candidate filtering.
type Scanner struct {
	log *slog.Logger
}

// New returns a Scanner that logs through log.
func New(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// Pids returns a snapshot of all process ids alive on the host.
func (s *Scanner) Pids() ([]int, error) {
	return listPids()
}

// Matches reports whether pid is a usable server candidate for serverPath,
// judged against the caller's own principal captured via CurrentPrincipal.
func (s *Scanner) Matches(pid int, serverPath string, self Principal) bool {
	if pid <= 0 {
		return false
	}
	ok := matches(pid, serverPath, self)
	if ok {
		s.log.Debug("candidate matched", "pid", pid, "path", serverPath)
	}
	return ok
}
