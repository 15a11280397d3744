package ranking

import "github.com/okian/toprank/pkg/logger"

// DefaultChunkSize is the number of rows persisted per InsertBatch call.
const DefaultChunkSize = 1000

// DefaultFlagKey is the config key gating privileged-player exclusion.
const DefaultFlagKey = "exclude_privileged"

// Option applies a configuration option to the Recomputer.
type Option func(*Recomputer)

// WithChunkSize sets the insert chunk size. Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(r *Recomputer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithFlagKey overrides the config key read before every replace.
func WithFlagKey(key string) Option {
	return func(r *Recomputer) {
		if key != "" {
			r.flagKey = key
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recomputer) {
		if l != nil {
			r.logger = l
		}
	}
}
