package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/hotc/internal/config"
	"github.com/loykin/hotc/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ServeFlags decouples cobra from the serve logic for testing.
type ServeFlags struct {
	ConfigPath   string
	Compiler     string
	Language     string
	KeepAliveSec int
}

func buildRoot() *cobra.Command {
	var f ServeFlags
	root := &cobra.Command{
		Use:           "hotcd",
		Short:         "Persistent compile server answering hotc clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(f)
		},
	}
	root.Flags().StringVar(&f.ConfigPath, "config", "", "path to hotc.toml")
	root.Flags().StringVar(&f.Compiler, "compiler", "", "compiler command to run per request")
	root.Flags().StringVar(&f.Language, "language", "", "request language to accept")
	root.Flags().IntVar(&f.KeepAliveSec, "keepalive", 0, "idle shutdown window in seconds (-1 disables)")
	return root
}

func serve(f ServeFlags) error {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return err
	}
	if f.Compiler != "" {
		cfg.Compiler = f.Compiler
	}
	if f.Language != "" {
		cfg.Language = f.Language
	}
	if f.KeepAliveSec != 0 {
		cfg.KeepAliveSec = f.KeepAliveSec
	}

	log := cfg.Log.ApplyEnv().New()

	keepAlive := time.Duration(cfg.KeepAliveSec) * time.Second
	if cfg.KeepAliveSec < 0 {
		keepAlive = -1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.New(server.Config{
		Compiler:  cfg.Compiler,
		Language:  cfg.Language,
		KeepAlive: keepAlive,
		Logger:    log,
	})
	log.Info("starting compile server", "pid", os.Getpid(), "compiler", cfg.Compiler)
	return s.Run(ctx)
}
