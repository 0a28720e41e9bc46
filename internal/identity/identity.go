package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ServerName is the fixed file name of the compile server executable.
// The server is expected to live in the same directory as the client, which
// keeps side-by-side installs of different toolchain versions isolated: each
// install resolves to its own server path and therefore its own lock name.
const ServerName = "hotcd"

// ServerIdentity scopes one discovery session to a single installed server
// executable. It is computed once per run and never mutated.
type ServerIdentity struct {
	// ServerPath is the full path a running process must have to be
	// considered a connection candidate.
	ServerPath string
	// LockName keys the machine-wide coordination lock.
	LockName string
}

// Resolve computes the expected server identity. When override is empty the
// server path is derived from the client's own executable location by
// replacing the file name with ServerName.
func Resolve(override string) (ServerIdentity, error) {
	path := override
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return ServerIdentity{}, fmt.Errorf("determine own executable path: %w", err)
		}
		path = filepath.Join(filepath.Dir(self), serverFileName())
	}
	return ServerIdentity{ServerPath: path, LockName: LockNameFor(path)}, nil
}

// LockNameFor normalizes a server path into a name legal in the lock
// namespace. Backslashes collapse to forward slashes so the two separator
// conventions cannot produce names that collide with unrelated paths.
func LockNameFor(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

func serverFileName() string {
	if runtime.GOOS == "windows" {
		return ServerName + ".exe"
	}
	return ServerName
}
