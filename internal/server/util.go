package server

import (
	"path/filepath"
	"strings"
)

// validWorkDir ensures the client-supplied working directory is an absolute
// path without traversal. It must be already cleaned (no ".." segments), so
// a request cannot steer the compiler outside the directory it names.
func validWorkDir(p string) bool {
	if p == "" {
		return false
	}
	if !filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(p)
	sep := string(filepath.Separator)
	trimmed := strings.TrimRight(p, sep)
	if trimmed == "" {
		trimmed = p // keep root like "/" on Unix
	}
	// Reject if cleaning changes more than just trailing separators
	if !(clean == p || clean == trimmed) {
		return false
	}
	return true
}
