package service

import (
	"github.com/okian/toprank/internal/domain/ranking"
	"github.com/okian/toprank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of replace workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many batch ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithInsertChunkSize sets the rows per insert call.
func WithInsertChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithMaxPageSize caps the page size of leaderboard reads.
func WithMaxPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxPageSize = size
		}
	}
}

// WithFlags sets the source of the privileged exclusion flag.
func WithFlags(flags ranking.FlagSource) Option {
	return func(s *Service) {
		s.flags = flags
	}
}

// WithPrivilegedProvider sets where privileged player ids come from.
func WithPrivilegedProvider(p ranking.PrivilegedProvider) Option {
	return func(s *Service) {
		s.privileged = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
