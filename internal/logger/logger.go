// Package logger builds the slog logger used by both hotc binaries.
//
// The client is silent by default: a launcher that races to connect must not
// pay for log setup, and its stdout/stderr belong to the forwarded compiler
// output. Diagnostics appear only when a log file is configured (rotated via
// lumberjack) or when a level is set with no file, which sends colored text
// to stderr for interactive debugging.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults, lumberjack semantics.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Environment overrides, applied on top of the config file.
const (
	EnvLogFile  = "HOTC_LOG_FILE"
	EnvLogLevel = "HOTC_LOG_LEVEL"
)

// Config describes the diagnostic log destination.
type Config struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ApplyEnv folds the environment overrides into c.
func (c Config) ApplyEnv() Config {
	if f := os.Getenv(EnvLogFile); f != "" {
		c.File = f
	}
	if l := os.Getenv(EnvLogLevel); l != "" {
		c.Level = l
	}
	return c
}

// New builds the logger for c. With neither file nor level set the logger
// discards everything.
func (c Config) New() *slog.Logger {
	level := parseLevel(c.Level)

	if c.File != "" {
		w := &lj.Logger{
			Filename:   c.File,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	if c.Level != "" {
		return slog.New(NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}, true))
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
