// Package config loads the optional hotc configuration file. Everything has
// a working default: a missing file is not an error, and the common path is
// that no file exists at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/hotc/internal/logger"
)

// EnvConfigPath names the environment variable pointing at an explicit
// config file. When unset, hotc.toml next to the executable is tried.
const EnvConfigPath = "HOTC_CONFIG"

// Timeouts carries the connection tiers and retry pacing. Zero values mean
// "use the built-in tier".
type Timeouts struct {
	ConnectExisting time.Duration `mapstructure:"connect_existing"`
	ConnectNew      time.Duration `mapstructure:"connect_new"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

// Config is the top-level TOML structure shared by hotc and hotcd.
type Config struct {
	// ServerPath overrides the executable-derived server location. Meant for
	// tests and relocated installs; normal deployments leave it empty.
	ServerPath string `mapstructure:"server_path"`
	// Language names the request language kind sent to the server.
	Language string `mapstructure:"language"`
	// Compiler is the toolchain command hotcd runs per request.
	Compiler string `mapstructure:"compiler"`
	// KeepAliveSec is hotcd's idle shutdown window in seconds; -1 disables.
	KeepAliveSec int `mapstructure:"keepalive"`

	Timeouts Timeouts      `mapstructure:"timeouts"`
	Log      logger.Config `mapstructure:"log"`
}

// Default returns the zero-config behavior both binaries start from.
func Default() Config {
	return Config{
		Language:     "hotlang",
		Compiler:     "cc",
		KeepAliveSec: 600,
	}
}

// Load reads the config file at path, or the discovered default location
// when path is empty. A missing file yields Default() without error; a file
// that exists but does not parse is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = discover()
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("stat config %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func discover() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	self, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(self), "hotc.toml")
}
