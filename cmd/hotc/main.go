package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/loykin/hotc"
	"github.com/loykin/hotc/internal/config"
	"github.com/loykin/hotc/internal/env"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	code := 1
	root := &cobra.Command{
		Use:   "hotc [compiler arguments]",
		Short: "Forward a compile invocation to a persistent compile server",
		// Arguments belong to the compiler, not to this launcher. Everything
		// is forwarded verbatim except /keepalive.
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compileExit(args)
			code = c
			return err
		},
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "hotc: "+err.Error())
	}
	return code
}

// compileExit performs the invocation and returns the process exit code:
// the compiler's own code on success, 1 on any launcher failure.
func compileExit(args []string) (int, error) {
	forward, keepAlive, err := hotc.ParseClientArgs(args)
	if err != nil {
		return 1, err
	}

	cfg, err := config.Load("")
	if err != nil {
		return 1, err
	}
	log := cfg.Log.ApplyEnv().New()

	workDir, err := os.Getwd()
	if err != nil {
		return 1, fmt.Errorf("resolve working directory: %w", err)
	}

	client := hotc.NewClient(hotc.Settings{
		ServerPath:      cfg.ServerPath,
		Language:        cfg.Language,
		LibPath:         os.Getenv(env.LibPathVar),
		KeepAlive:       keepAlive,
		ConnectExisting: cfg.Timeouts.ConnectExisting,
		ConnectNew:      cfg.Timeouts.ConnectNew,
		RetryBackoff:    cfg.Timeouts.RetryBackoff,
		Logger:          log,
	})

	resp, err := client.Run(workDir, forward)
	if err != nil {
		switch {
		case errors.Is(err, hotc.ErrNeverConnected):
			log.Error("no compile server reachable", "error", err)
		case errors.Is(err, hotc.ErrServerDied):
			log.Error("compile server terminated", "error", err)
		default:
			log.Error("compile exchange failed", "error", err)
		}
		return 1, err
	}

	if resp.Output != "" {
		_, _ = os.Stdout.WriteString(resp.Output)
	}
	if resp.ErrorOutput != "" {
		_, _ = os.Stderr.WriteString(resp.ErrorOutput)
	}
	return resp.ExitCode, nil
}
