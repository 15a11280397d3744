// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults come from New; Load layers a YAML file and TOPRANK_ env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Flag keys understood by Config.Bool.
const (
	KeyExcludePrivileged = "exclude_privileged"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory replace job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of replace workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the number of remembered batch ids.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPageSize caps GET /rankings/{metric}?size.
	MaxPageSize int `koanf:"max_page_size"`

	// InsertChunkSize is the number of rows per batch insert call.
	InsertChunkSize int `koanf:"insert_chunk_size"`

	// ExcludePrivileged drops privileged players from the off-line merge.
	ExcludePrivileged bool `koanf:"exclude_privileged"`

	// PrivilegedPlayers is a static privileged id list used when no Redis is configured.
	PrivilegedPlayers []string `koanf:"privileged_players"`

	// DatabaseURL selects the Postgres store; empty keeps rankings in memory.
	DatabaseURL string `koanf:"database_url"`

	// RedisAddr enables the Redis-backed privileged player provider.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// PrivilegedKey is the Redis set holding privileged player ids.
	PrivilegedKey string `koanf:"privileged_key"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       64,
		WorkerCount:     1,
		DedupeSize:      10_000,
		MaxPageSize:     100,
		InsertChunkSize: 1000,
		PrivilegedKey:   "toprank:privileged",
	}
}

// Bool returns the boolean flag stored under key. Unknown keys are false.
func (c *Config) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case KeyExcludePrivileged:
		return c.ExcludePrivileged
	default:
		return false
	}
}

// Validate checks invariants that the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.InsertChunkSize < 1:
		return fmt.Errorf("%w: insert_chunk_size must be positive", ErrInvalidConfig)
	case c.MaxPageSize < 1:
		return fmt.Errorf("%w: max_page_size must be positive", ErrInvalidConfig)
	}
	return nil
}
