//go:build windows

package channel

import (
	"net"
	"strconv"
	"time"

	"github.com/Microsoft/go-winio"
)

// EndpointName returns the named-pipe path for the server with the given pid.
func EndpointName(pid int) string {
	return `\\.\pipe\` + Prefix + strconv.Itoa(pid)
}

// Dial attempts to connect to the server with the given pid within timeout.
// DialPipe fails immediately while the pipe does not exist yet, so Dial polls
// until the deadline and reports (nil, false) rather than an error.
func Dial(pid int, timeout time.Duration) (net.Conn, bool) {
	name := EndpointName(pid)
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		conn, err := winio.DialPipe(name, &remaining)
		if err == nil {
			return conn, true
		}
		if time.Until(deadline) <= pollInterval {
			return nil, false
		}
		time.Sleep(pollInterval)
	}
}

// Listen creates the endpoint for the server with the given pid.
func Listen(pid int) (net.Listener, error) {
	return winio.ListenPipe(EndpointName(pid), nil)
}

// Remove is a no-op on Windows; the pipe disappears with its listener.
func Remove(int) {}
