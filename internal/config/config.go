// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/splitledger/internal/batch"
)

// Config holds settings shared by every command. Command-line flags
// override these values.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `env:"SPLITLEDGER_DB" envDefault:"splitledger.db"`
	// BatchWait is how long a coalesced group stays open.
	BatchWait time.Duration `env:"SPLITLEDGER_BATCH_WAIT" envDefault:"1ms"`
	// MaxBatch closes a group early at this size. Zero means unbounded.
	MaxBatch int `env:"SPLITLEDGER_MAX_BATCH" envDefault:"0"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"SPLITLEDGER_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BatchWait <= 0 {
		return Config{}, fmt.Errorf("parse env: SPLITLEDGER_BATCH_WAIT must be positive, got %s", cfg.BatchWait)
	}
	if cfg.MaxBatch < 0 {
		return Config{}, fmt.Errorf("parse env: SPLITLEDGER_MAX_BATCH must not be negative, got %d", cfg.MaxBatch)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BatchOptions returns the coalescer settings.
func (c Config) BatchOptions() batch.Options {
	return batch.Options{Wait: c.BatchWait, MaxBatch: c.MaxBatch}
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
