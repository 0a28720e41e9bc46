//go:build !windows

package channel

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// EndpointName returns the socket path for the server with the given pid.
// Sockets live in the user runtime directory when available so permissions
// follow the login session.
func EndpointName(pid int) string {
	return filepath.Join(runtimeDir(), fmt.Sprintf("%s%d.sock", Prefix, pid))
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Dial attempts to connect to the server with the given pid within timeout.
// Nothing listening yet is an ordinary outcome: Dial keeps polling until the
// deadline and reports (nil, false) rather than an error.
func Dial(pid int, timeout time.Duration) (net.Conn, bool) {
	path := EndpointName(pid)
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		conn, err := net.DialTimeout("unix", path, remaining)
		if err == nil {
			return conn, true
		}
		if time.Until(deadline) <= pollInterval {
			return nil, false
		}
		time.Sleep(pollInterval)
	}
}

// Listen creates the endpoint for the server with the given pid, replacing a
// stale socket left behind by an earlier process that happened to share the
// pid.
func Listen(pid int) (net.Listener, error) {
	path := EndpointName(pid)
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

// Remove deletes the endpoint for the given pid. Best-effort, used by the
// server on clean shutdown.
func Remove(pid int) {
	_ = os.Remove(EndpointName(pid))
}
