// Package config resolves engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variable names consumed by the engine.
const (
	EnvDataDir = "QUESTFORGE_DATA_DIR"
	EnvInMem   = "QUESTFORGE_TEST_INMEM"
)

// Config carries everything the engine needs to start.
type Config struct {
	// DatabasePath is the sqlite file location, or ":memory:" when the
	// test flag selects an in-memory store.
	DatabasePath string

	// HeatDecayDaysPerStep controls how many simulated days cool a
	// stolen item by one heat level.
	HeatDecayDaysPerStep int
}

// Load reads .env (if present) and the process environment, and
// derives the storage path. The data directory must exist or be
// creatable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{HeatDecayDaysPerStep: 1}

	if os.Getenv(EnvInMem) != "" {
		cfg.DatabasePath = ":memory:"
		return cfg, nil
	}

	dir := os.Getenv(EnvDataDir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		dir = filepath.Join(home, ".questforge")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	cfg.DatabasePath = filepath.Join(dir, "questforge.db")
	return cfg, nil
}
