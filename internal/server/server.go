// Package server implements the hotcd side of the compile channel: a
// listener bound to the server's own pid, an accept loop, and per-connection
// request handling that runs the configured compiler.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/hotc/internal/channel"
	"github.com/loykin/hotc/internal/env"
	"github.com/loykin/hotc/internal/protocol"
)

// DefaultKeepAlive is the idle window before a server with no connections
// shuts itself down. A keepalive of -1 disables the idle shutdown.
const DefaultKeepAlive = 600 * time.Second

// Config carries what the server needs to answer compile requests.
type Config struct {
	// Compiler is the command run once per request.
	Compiler string
	// Language is the request language this server accepts.
	Language string
	// KeepAlive is the initial idle window. Zero means DefaultKeepAlive,
	// negative disables idle shutdown.
	KeepAlive time.Duration
	// Logger defaults to a discarding logger when nil.
	Logger *slog.Logger
}

// Server owns the channel endpoint for this process and serves requests
// until stopped or idle past the keep-alive window.
type Server struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	ln        net.Listener
	keepAlive time.Duration
	active    int
	lastDone  time.Time
}

func New(cfg Config) *Server {
	if cfg.Compiler == "" {
		cfg.Compiler = "cc"
	}
	if cfg.Language == "" {
		cfg.Language = "hotlang"
	}
	ka := cfg.KeepAlive
	if ka == 0 {
		ka = DefaultKeepAlive
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, log: log, keepAlive: ka, lastDone: time.Now()}
}

// Run listens on this process's endpoint and serves until ctx is canceled
// or the server has been idle for the keep-alive window.
func (s *Server) Run(ctx context.Context) error {
	pid := os.Getpid()
	ln, err := channel.Listen(pid)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	defer func() {
		_ = ln.Close()
		channel.Remove(pid)
	}()
	s.log.Info("listening", "endpoint", channel.EndpointName(pid), "pid", pid)

	stop := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(stop); _ = ln.Close() }) }

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		shutdown()
	}()
	go s.watchIdle(stop, shutdown)

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.connStart()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.connDone()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) connStart() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

func (s *Server) connDone() {
	s.mu.Lock()
	s.active--
	s.lastDone = time.Now()
	s.mu.Unlock()
}

// watchIdle fires the shutdown once the server has had no active
// connections for the keep-alive window. Requests may extend the window.
func (s *Server) watchIdle(stop <-chan struct{}, shutdown func()) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		s.mu.Lock()
		ka := s.keepAlive
		idle := s.active == 0 && time.Since(s.lastDone) >= ka
		s.mu.Unlock()
		if ka < 0 {
			continue
		}
		if idle {
			s.log.Info("idle keep-alive expired, shutting down", "keepalive", ka)
			shutdown()
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		s.log.Warn("bad request", "error", err)
		return
	}
	if req.Language != s.cfg.Language {
		s.log.Warn("rejecting request for unknown language", "language", req.Language)
		_ = protocol.WriteResponse(conn, &protocol.Response{
			ExitCode:    1,
			ErrorOutput: "unsupported language: " + req.Language,
		})
		return
	}
	if req.KeepAlive != nil {
		s.updateKeepAlive(*req.KeepAlive)
	}
	if !validWorkDir(req.WorkingDirectory) {
		_ = protocol.WriteResponse(conn, &protocol.Response{
			ExitCode:    1,
			ErrorOutput: "invalid working directory: " + req.WorkingDirectory,
		})
		return
	}

	resp := s.compile(ctx, req)
	if err := protocol.WriteResponse(conn, resp); err != nil {
		s.log.Warn("response write failed", "error", err)
	}
}

// updateKeepAlive applies a client-requested keep-alive. Values only ever
// come from validated /keepalive arguments, so n >= -1.
func (s *Server) updateKeepAlive(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		s.keepAlive = -1
		s.log.Info("keep-alive disabled by request")
		return
	}
	s.keepAlive = time.Duration(n) * time.Second
	s.log.Info("keep-alive updated", "seconds", n)
}

func (s *Server) compile(ctx context.Context, req *protocol.Request) *protocol.Response {
	start := time.Now()
	cmd := exec.CommandContext(ctx, s.cfg.Compiler, req.Arguments...)
	cmd.Dir = req.WorkingDirectory
	e := env.New()
	if req.LibPath != "" {
		e.Set(env.LibPathVar, req.LibPath)
	}
	cmd.Env = e.Merge(nil)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			s.log.Error("compiler did not start", "compiler", s.cfg.Compiler, "error", err)
			return &protocol.Response{ExitCode: 1, ErrorOutput: err.Error()}
		}
	}
	s.log.Debug("request served",
		"args", len(req.Arguments), "exit", code, "elapsed", time.Since(start))
	return &protocol.Response{
		ExitCode:    code,
		Output:      stdout.String(),
		ErrorOutput: stderr.String(),
		UTF8Output:  true,
	}
}
