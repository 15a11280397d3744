package repository

import (
	"time"

	"github.com/okian/toprank/internal/domain/model"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRecords seeds the store with an initial table.
func WithRecords(records ...model.RankRecord) MemoryOption {
	return func(s *MemoryStore) {
		s.rows = append([]model.RankRecord(nil), records...)
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	table           string
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	connectTimeout  time.Duration
}

func defaultPostgresConfig() postgresConfig {
	return postgresConfig{
		table:           "top_rank_records",
		maxConns:        10,
		minConns:        1,
		maxConnLifetime: time.Hour,
		connectTimeout:  10 * time.Second,
	}
}

// WithTable overrides the ranking table name.
func WithTable(name string) PostgresOption {
	return func(c *postgresConfig) {
		if name != "" {
			c.table = name
		}
	}
}

// WithPoolSize sets the pool connection bounds.
func WithPoolSize(minConns, maxConns int32) PostgresOption {
	return func(c *postgresConfig) {
		if maxConns > 0 && minConns >= 0 && minConns <= maxConns {
			c.minConns = minConns
			c.maxConns = maxConns
		}
	}
}

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}
