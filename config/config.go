/*
Package config loads server configuration from a TOML file.

PURPOSE:
  Bundles the few knobs the server has: listen address, database path,
  and allowed CORS origins. A missing file is not an error - the
  defaults run a local dev server - and command-line flags still win
  over file values (see cmd/server/main.go).

EXAMPLE (loyalty.toml):
  listen_address = ":8080"
  database_path  = "./data/loyalty.db"
  allowed_origins = ["http://localhost:5173"]
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds server settings.
type Config struct {
	ListenAddress  string   `toml:"listen_address"`
	DatabasePath   string   `toml:"database_path"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddress:  ":8080",
		DatabasePath:   "loyalty.db",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads the configuration from the given path. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = Default().ListenAddress
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = Default().DatabasePath
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = Default().AllowedOrigins
	}
	return cfg, nil
}
