package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/loykin/hotc/internal/identity"
	"github.com/loykin/hotc/internal/launcher"
	"github.com/loykin/hotc/internal/procscan"
	"github.com/loykin/hotc/internal/protocol"
)

type fakeScanner struct {
	pids  []int
	err   error
	match func(pid int) bool
}

func (s fakeScanner) Pids() ([]int, error) { return s.pids, s.err }
func (s fakeScanner) Matches(pid int, _ string, _ procscan.Principal) bool {
	return s.match != nil && s.match(pid)
}

type fakeLock struct {
	tryOK    bool
	waitOK   bool
	held     bool
	releases int
	waited   bool
}

func (l *fakeLock) TryAcquire() bool {
	l.held = l.tryOK
	return l.tryOK
}

func (l *fakeLock) WaitFor(time.Duration) bool {
	l.waited = true
	l.held = l.waitOK
	return l.waitOK
}

func (l *fakeLock) Held() bool { return l.held }

func (l *fakeLock) Release() {
	if l.held {
		l.releases++
		l.held = false
	}
}

type fakeLauncher struct {
	nextPid int
	started int
	exit    launcher.ExitState
}

func (l *fakeLauncher) Start(identity.ServerIdentity) int {
	l.started++
	return l.nextPid
}

func (l *fakeLauncher) ExitState(int) launcher.ExitState { return l.exit }

// serveOnce returns a connection whose far end answers one request with resp
// and reports the request it saw on reqCh. A nil resp closes the connection
// without answering, simulating a server dying mid-exchange.
func serveOnce(t *testing.T, resp *protocol.Response, reqCh chan<- *protocol.Request) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		defer func() { _ = server.Close() }()
		req, err := protocol.ReadRequest(server)
		if err != nil {
			return
		}
		if reqCh != nil {
			reqCh <- req
		}
		if resp != nil {
			_ = protocol.WriteResponse(server, resp)
		}
	}()
	return client
}

func testSettings() Settings {
	return Settings{
		ServerPath:      "/opt/hotc/hotcd",
		ConnectExisting: 50 * time.Millisecond,
		ConnectNew:      50 * time.Millisecond,
		RetryBackoff:    time.Millisecond,
	}
}

func TestNoCandidatesLaunchesExactlyOneServer(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 900}
	dials := []int{}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		dials = append(dials, pid)
		return serveOnce(t, &protocol.Response{ExitCode: 3}, nil), true
	}
	sess := New(testSettings(), fakeScanner{pids: []int{1, 2}}, dial, launch, func(string) Locker { return lock })

	resp, err := sess.Run("/src", []string{"--version"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.ExitCode != 3 {
		t.Fatalf("exit code: %d", resp.ExitCode)
	}
	if launch.started != 1 {
		t.Fatalf("servers launched: got %d want 1", launch.started)
	}
	if len(dials) != 1 || dials[0] != 900 {
		t.Fatalf("dialed pids: %v", dials)
	}
	if lock.releases == 0 || lock.held {
		t.Fatalf("lock not released: %+v", lock)
	}
}

func TestSingleMatchingCandidateIsReusedWithoutSpawn(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 900}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		if pid != 42 {
			t.Errorf("dialed unexpected pid %d", pid)
		}
		return serveOnce(t, &protocol.Response{ExitCode: 0, Output: "ok"}, nil), true
	}
	scan := fakeScanner{pids: []int{7, 42, 99}, match: func(pid int) bool { return pid == 42 }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	resp, err := sess.Run("/src", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Output != "ok" {
		t.Fatalf("response: %+v", resp)
	}
	if launch.started != 0 {
		t.Fatalf("spawned a server despite a reachable candidate")
	}
}

func TestFirstReachableCandidateWinsAmongMany(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{}
	var dialed []int
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		dialed = append(dialed, pid)
		if pid == 20 {
			return serveOnce(t, &protocol.Response{}, nil), true
		}
		return nil, false // candidate matched but nothing answers: stale
	}
	scan := fakeScanner{pids: []int{10, 20, 30}, match: func(int) bool { return true }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{10, 20}
	if len(dialed) != 2 || dialed[0] != want[0] || dialed[1] != want[1] {
		t.Fatalf("dial order: got %v want %v", dialed, want)
	}
	if launch.started != 0 {
		t.Fatalf("spawned despite reachable candidate")
	}
}

func TestLockReleasedBeforeExchange(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{}
	heldAtExchange := make(chan bool, 1)
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		client, server := net.Pipe()
		go func() {
			defer func() { _ = server.Close() }()
			if _, err := protocol.ReadRequest(server); err != nil {
				return
			}
			// The request arriving marks the start of the exchange.
			heldAtExchange <- lock.Held()
			_ = protocol.WriteResponse(server, &protocol.Response{})
		}()
		return client, true
	}
	scan := fakeScanner{pids: []int{5}, match: func(int) bool { return true }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if held := <-heldAtExchange; held {
		t.Fatalf("coordination lock still held during exchange")
	}
}

func TestEnumerationFailureBehavesLikeZeroCandidates(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 901}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		return serveOnce(t, &protocol.Response{ExitCode: 0}, nil), true
	}
	scan := fakeScanner{err: errors.New("enumeration broke"), match: func(int) bool { return true }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if launch.started != 1 {
		t.Fatalf("servers launched: got %d want 1", launch.started)
	}
}

func TestStaleCandidateFallsThroughToLaunch(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 902}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		if pid == 902 {
			return serveOnce(t, &protocol.Response{ExitCode: 0}, nil), true
		}
		return nil, false // matching process, dead endpoint
	}
	scan := fakeScanner{pids: []int{55}, match: func(pid int) bool { return pid == 55 }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if launch.started != 1 {
		t.Fatalf("servers launched: got %d want 1", launch.started)
	}
}

func TestLockWaitThenProceedWithoutDuplicateSpawn(t *testing.T) {
	lock := &fakeLock{tryOK: false, waitOK: true}
	launch := &fakeLauncher{}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		return serveOnce(t, &protocol.Response{}, nil), true
	}
	scan := fakeScanner{pids: []int{61}, match: func(int) bool { return true }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !lock.waited {
		t.Fatalf("session never waited for the contended lock")
	}
	if launch.started != 0 {
		t.Fatalf("spawned a duplicate server after the lock wait")
	}
}

func TestExchangeFailureFallsThroughToFinalNoLockAttempt(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 903}
	attempt := 0
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		attempt++
		if attempt == 1 {
			// Existing server accepts, then dies before answering.
			return serveOnce(t, nil, nil), true
		}
		return serveOnce(t, &protocol.Response{ExitCode: 0}, nil), true
	}
	scan := fakeScanner{pids: []int{70}, match: func(int) bool { return true }}
	sess := New(testSettings(), scan, dial, launch, func(string) Locker { return lock })

	if _, err := sess.Run("/src", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if launch.started != 1 {
		t.Fatalf("final attempt should have launched exactly once, got %d", launch.started)
	}
	if lock.held {
		t.Fatalf("lock held at exit")
	}
}

func TestNeverConnectedClassification(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{nextPid: 0} // creation always fails
	dial := func(pid int, _ time.Duration) (net.Conn, bool) { return nil, false }
	sess := New(testSettings(), fakeScanner{}, dial, launch, func(string) Locker { return lock })

	_, err := sess.Run("/src", nil)
	if !errors.Is(err, ErrNeverConnected) {
		t.Fatalf("want ErrNeverConnected, got %v", err)
	}
	if lock.held {
		t.Fatalf("lock held at failure exit")
	}
}

func TestServerDiedClassification(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{
		nextPid: 904,
		exit:    launcher.ExitState{HasCode: true, ExitCode: 137},
	}
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		// Connects, but every exchange dies without a response.
		return serveOnce(t, nil, nil), true
	}
	sess := New(testSettings(), fakeScanner{}, dial, launch, func(string) Locker { return lock })

	_, err := sess.Run("/src", nil)
	if !errors.Is(err, ErrServerDied) {
		t.Fatalf("want ErrServerDied, got %v", err)
	}
}

func TestRequestCarriesSettingsAndVerbatimArgs(t *testing.T) {
	lock := &fakeLock{tryOK: true}
	launch := &fakeLauncher{}
	reqCh := make(chan *protocol.Request, 1)
	dial := func(pid int, _ time.Duration) (net.Conn, bool) {
		return serveOnce(t, &protocol.Response{}, reqCh), true
	}
	scan := fakeScanner{pids: []int{80}, match: func(int) bool { return true }}
	keep := 30
	cfg := testSettings()
	cfg.Language = "hotlang"
	cfg.LibPath = "/opt/libs"
	cfg.KeepAlive = &keep
	sess := New(cfg, scan, dial, launch, func(string) Locker { return lock })

	args := []string{"-O2", "main.src"}
	if _, err := sess.Run("/work", args); err != nil {
		t.Fatalf("Run: %v", err)
	}
	req := <-reqCh
	if req.WorkingDirectory != "/work" || req.LibPath != "/opt/libs" {
		t.Fatalf("request: %+v", req)
	}
	if req.KeepAlive == nil || *req.KeepAlive != keep {
		t.Fatalf("keepalive not forwarded: %+v", req.KeepAlive)
	}
	if len(req.Arguments) != 2 || req.Arguments[0] != "-O2" || req.Arguments[1] != "main.src" {
		t.Fatalf("arguments not verbatim: %v", req.Arguments)
	}
}
