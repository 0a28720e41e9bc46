// Package session drives one compile invocation end to end: discover a
// compatible running server, or create one, racing fairly against other
// client processes, then perform exactly one request/response exchange.
//
// Concurrency lives across client processes, not inside one: the session is
// a single-threaded blocking pipeline whose only shared resource is the
// machine-wide coordination lock. Every wait is bounded.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/loykin/hotc/internal/channel"
	"github.com/loykin/hotc/internal/identity"
	"github.com/loykin/hotc/internal/launcher"
	"github.com/loykin/hotc/internal/procscan"
	"github.com/loykin/hotc/internal/protocol"
)

// Terminal failure classes. Everything else the session encounters is
// absorbed and drives the fallback path.
var (
	ErrNeverConnected = errors.New("could not connect to a compile server")
	ErrServerDied     = errors.New("compile server process terminated unexpectedly")
	ErrUnknown        = errors.New("compile server exchange failed")
)

// Scanner enumerates processes and filters server candidates.
type Scanner interface {
	Pids() ([]int, error)
	Matches(pid int, serverPath string, self procscan.Principal) bool
}

// Connector opens a channel to a server process within a timeout. A false
// result means nothing answered in time; that is an ordinary outcome.
type Connector func(pid int, timeout time.Duration) (net.Conn, bool)

// Launcher spawns server processes. Start returns 0 on creation failure.
type Launcher interface {
	Start(id identity.ServerIdentity) int
	ExitState(pid int) launcher.ExitState
}

// Locker is the named coordination lock scoped to one server identity.
type Locker interface {
	TryAcquire() bool
	WaitFor(timeout time.Duration) bool
	Held() bool
	Release()
}

// Settings configures a session. The zero value plus Logger is usable;
// unset timeouts fall back to the channel package tiers.
type Settings struct {
	// ServerPath overrides the executable-derived server location.
	ServerPath string
	// Language names the request language kind understood by the server.
	Language string
	// LibPath is forwarded in the request when non-empty.
	LibPath string
	// KeepAlive, when non-nil, is forwarded in the request.
	KeepAlive *int

	ConnectExisting time.Duration
	ConnectNew      time.Duration
	RetryBackoff    time.Duration

	Logger *slog.Logger
}

func (s *Settings) fillDefaults() {
	if s.Language == "" {
		s.Language = "hotlang"
	}
	if s.ConnectExisting <= 0 {
		s.ConnectExisting = channel.ExistingProcessTimeout
	}
	if s.ConnectNew <= 0 {
		s.ConnectNew = channel.NewProcessTimeout
	}
	if s.RetryBackoff <= 0 {
		s.RetryBackoff = 500 * time.Millisecond
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
}

// Session is the connection/coordination state machine for one invocation.
type Session struct {
	cfg     Settings
	scan    Scanner
	dial    Connector
	launch  Launcher
	newLock func(name string) Locker
	log     *slog.Logger
}

// New wires a session from its collaborators.
func New(cfg Settings, scan Scanner, dial Connector, launch Launcher, newLock func(name string) Locker) *Session {
	cfg.fillDefaults()
	return &Session{
		cfg:     cfg,
		scan:    scan,
		dial:    dial,
		launch:  launch,
		newLock: newLock,
		log:     cfg.Logger,
	}
}

// Run forwards one compile invocation and returns the completed response.
// workDir and args are sent to the server exactly as given. On any terminal
// failure the returned error wraps one of the Err* classes above.
func (s *Session) Run(workDir string, args []string) (*protocol.Response, error) {
	id, err := identity.Resolve(s.cfg.ServerPath)
	if err != nil {
		return nil, err
	}
	self, err := procscan.CurrentPrincipal()
	if err != nil {
		return nil, err
	}
	req := &protocol.Request{
		Version:          protocol.Version,
		Language:         s.cfg.Language,
		WorkingDirectory: workDir,
		Arguments:        args,
		LibPath:          s.cfg.LibPath,
		KeepAlive:        s.cfg.KeepAlive,
	}

	lock := s.newLock(id.LockName)
	defer lock.Release()

	var lastPid int
	connected := false

	if lock.TryAcquire() || lock.WaitFor(s.cfg.ConnectNew) {
		// Someone may have created a server while we waited; check for
		// existing processes before creating our own.
		if conn, ok := s.tryExisting(id, self); ok {
			connected = true
			lock.Release() // unblock other waiters before the exchange
			if resp, err := s.exchange(conn, req); err == nil {
				return resp, nil
			}
			s.log.Warn("exchange with existing server failed, retrying")
		} else {
			pid := s.launch.Start(id)
			if pid != 0 {
				lastPid = pid
				s.log.Debug("connecting to new server", "pid", pid)
				if conn, ok := s.dial(pid, s.cfg.ConnectNew); ok {
					connected = true
					lock.Release()
					if resp, err := s.exchange(conn, req); err == nil {
						return resp, nil
					}
					s.log.Warn("exchange with new server failed, retrying", "pid", pid)
				}
			}
		}
		lock.Release()
		// Let resource contention subside before the last resort.
		time.Sleep(s.cfg.RetryBackoff)
	}

	// Final attempt without the lock. Deduplication no longer matters:
	// getting a working server outranks avoiding a duplicate one.
	s.log.Debug("final attempt without the coordination lock")
	if pid := s.launch.Start(id); pid != 0 {
		lastPid = pid
		if conn, ok := s.dial(pid, s.cfg.ConnectNew); ok {
			connected = true
			if resp, err := s.exchange(conn, req); err == nil {
				return resp, nil
			}
		}
	}

	return nil, s.classify(connected, lastPid)
}

// tryExisting scans for compatible running servers and connects to the first
// one that answers within the short tier. Enumeration failure is reported by
// behaving exactly like an empty candidate set.
func (s *Session) tryExisting(id identity.ServerIdentity, self procscan.Principal) (net.Conn, bool) {
	pids, err := s.scan.Pids()
	if err != nil {
		s.log.Warn("process enumeration failed", "error", err)
		return nil, false
	}
	s.log.Debug("scanning for existing servers", "processes", len(pids))
	for _, pid := range pids {
		if !s.scan.Matches(pid, id.ServerPath, self) {
			continue
		}
		if conn, ok := s.dial(pid, s.cfg.ConnectExisting); ok {
			s.log.Debug("connected to existing server", "pid", pid)
			return conn, true
		}
		// Matching but unreachable: stale endpoint or wedged server. Keep
		// scanning; a later candidate may answer.
	}
	return nil, false
}

// exchange performs the single request/response round trip and closes the
// channel on every path. A channel whose exchange failed is never reused.
func (s *Session) exchange(conn net.Conn, req *protocol.Request) (*protocol.Response, error) {
	defer func() { _ = conn.Close() }()
	resp, err := protocol.Exchange(conn, req)
	if err != nil {
		s.log.Warn("exchange failed", "error", err)
		return nil, err
	}
	return resp, nil
}

// classify produces the terminal failure from the last known state: we never
// connected at all, or the server we spawned died, or something in between.
func (s *Session) classify(connected bool, lastPid int) error {
	if !connected {
		return ErrNeverConnected
	}
	if lastPid != 0 {
		st := s.launch.ExitState(lastPid)
		if st.HasCode {
			return fmt.Errorf("%w (exit code %d)", ErrServerDied, st.ExitCode)
		}
		if !st.Alive {
			return ErrServerDied
		}
	}
	return ErrUnknown
}
