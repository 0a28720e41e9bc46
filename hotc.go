// Package hotc launches compile requests against a persistent compile
// server, starting one when none is reachable. It is the embeddable API
// behind the hotc command.
package hotc

import (
	"log/slog"

	"github.com/loykin/hotc/internal/channel"
	"github.com/loykin/hotc/internal/launcher"
	"github.com/loykin/hotc/internal/namedlock"
	"github.com/loykin/hotc/internal/procscan"
	"github.com/loykin/hotc/internal/protocol"
	"github.com/loykin/hotc/internal/server"
	"github.com/loykin/hotc/internal/session"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Request = protocol.Request

type Response = protocol.Response

type Settings = session.Settings

type ArgumentError = session.ArgumentError

// Terminal failure classes returned (wrapped) by Client.Run.
var (
	ErrNeverConnected = session.ErrNeverConnected
	ErrServerDied     = session.ErrServerDied
	ErrUnknown        = session.ErrUnknown
)

// ParseClientArgs splits a raw command line into arguments to forward and
// an optional keep-alive override consumed locally.
func ParseClientArgs(args []string) ([]string, *int, error) {
	return session.ParseClientArgs(args)
}

// Client is a thin facade over internal/session wired with the real
// process scanner, channel dialer, launcher and coordination lock.
type Client struct{ inner *session.Session }

func NewClient(cfg Settings) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
		cfg.Logger = log
	}
	return &Client{inner: session.New(
		cfg,
		procscan.New(log),
		channel.Dial,
		launcher.New(log),
		func(name string) session.Locker { return namedlock.New(name) },
	)}
}

// Run forwards one compile invocation and returns the completed response.
func (c *Client) Run(workDir string, args []string) (*Response, error) {
	return c.inner.Run(workDir, args)
}

// Server facade for hosting the daemon side in-process.

type ServerConfig = server.Config

type Server = server.Server

func NewServer(cfg ServerConfig) *Server { return server.New(cfg) }
