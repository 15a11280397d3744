package privileged

import (
	"time"

	"github.com/okian/toprank/pkg/logger"
)

// RedisOption applies a configuration option to the RedisProvider.
type RedisOption func(*RedisProvider)

// WithTimeout bounds each SMEMBERS round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(p *RedisProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) RedisOption {
	return func(p *RedisProvider) {
		if l != nil {
			p.logger = l
		}
	}
}
