// Package service wires the ranking components together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	replacequeue "github.com/okian/toprank/internal/adapters/mq/queue"
	workerpool "github.com/okian/toprank/internal/adapters/mq/worker"
	"github.com/okian/toprank/internal/adapters/repository"
	"github.com/okian/toprank/internal/domain/dedupe"
	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/ranking"
	"github.com/okian/toprank/pkg/logger"
	"github.com/okian/toprank/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidBatch = errors.New("invalid batch")
	ErrBackpressure = errors.New("replace queue full")
)

// Submission acknowledges a batch.
type Submission struct {
	BatchID   string
	Duplicate bool
	Records   int
	Result    ranking.Result // zero for async submissions
}

type lastReplace struct {
	BatchID  string
	At       time.Time
	Rows     int
	Groups   int
	Offline  int
	Err      string
	Duration time.Duration
}

// Service implements the API dependencies for the ranking system.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	flags      ranking.FlagSource
	privileged ranking.PrivilegedProvider
	recomputer *ranking.Recomputer
	deduper    dedupe.Deduper
	queue      replacequeue.Queue
	pool       *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	chunkSize   int
	maxPageSize int

	started bool

	processed atomic.Int64
	failed    atomic.Int64
	lastMu    sync.Mutex
	last      *lastReplace

	logger logger.Logger
}

// New constructs a Service over store. Components are built by Start.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: 1,
		queueSize:   64,
		dedupeSize:  10_000,
		chunkSize:   ranking.DefaultChunkSize,
		maxPageSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return errors.New("start: nil store")
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.recomputer = ranking.New(s.store, s.flags, s.privileged,
		ranking.WithChunkSize(s.chunkSize),
		ranking.WithLogger(s.logger.Named("ranking")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = replacequeue.NewInMemoryQueue(replacequeue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.recomputer,
		workerpool.WithPoolLogger(s.logger.Named("worker-pool")),
		workerpool.WithPoolResultHandler(s.recordResult),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("chunkSize", s.chunkSize),
	)
	return nil
}

// Stop drains pending batches and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping ranking service", logger.Int("pending", s.queue.Len(ctx)))

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
	return errors.Join(errs...)
}

// Submit validates batch and queues it for recomputation. A batch id seen
// before is acknowledged as a duplicate without queueing. An empty id is
// replaced by a random one.
func (s *Service) Submit(ctx context.Context, batchID string, batch model.Batch) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Submission{}, ErrNotStarted
	}

	sub, err := s.admit(ctx, batchID, batch)
	if err != nil || sub.Duplicate {
		return sub, err
	}

	err = s.queue.Enqueue(ctx, model.ReplaceJob{BatchID: sub.BatchID, Records: batch, SubmittedAt: time.Now()})
	if err != nil {
		s.deduper.Unrecord(ctx, sub.BatchID)
		if errors.Is(err, replacequeue.ErrFull) {
			return Submission{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return Submission{}, fmt.Errorf("enqueue batch %s: %w", sub.BatchID, err)
	}
	metrics.RecordBatchSubmitted()
	return sub, nil
}

// SubmitSync validates batch and recomputes the table before returning.
func (s *Service) SubmitSync(ctx context.Context, batchID string, batch model.Batch) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Submission{}, ErrNotStarted
	}

	sub, err := s.admit(ctx, batchID, batch)
	if err != nil || sub.Duplicate {
		return sub, err
	}
	metrics.RecordBatchSubmitted()

	job := model.ReplaceJob{BatchID: sub.BatchID, Records: batch, SubmittedAt: time.Now()}
	res, err := s.recomputer.Replace(ctx, batch)
	s.recordResult(job, res, err)
	if err != nil {
		return Submission{}, fmt.Errorf("replace batch %s: %w", sub.BatchID, err)
	}
	sub.Result = res
	return sub, nil
}

func (s *Service) admit(ctx context.Context, batchID string, batch model.Batch) (Submission, error) {
	if err := validateBatch(batch); err != nil {
		return Submission{}, err
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}
	sub := Submission{BatchID: batchID, Records: len(batch)}
	if s.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatchDuplicate()
		s.logger.Debug(ctx, "duplicate batch skipped", logger.String("batchID", batchID))
		sub.Duplicate = true
	}
	return sub, nil
}

// validateBatch rejects rows the ranking table cannot hold.
func validateBatch(batch model.Batch) error {
	type key struct{ metric, player string }
	seen := make(map[key]struct{}, len(batch))
	for i, r := range batch {
		switch {
		case strings.TrimSpace(r.MetricKey) == "":
			return fmt.Errorf("%w: record %d: missing metric_key", ErrInvalidBatch, i)
		case strings.TrimSpace(r.PlayerID) == "":
			return fmt.Errorf("%w: record %d: missing player_id", ErrInvalidBatch, i)
		case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
			return fmt.Errorf("%w: record %d: value must be finite", ErrInvalidBatch, i)
		}
		k := key{r.MetricKey, r.PlayerID}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: record %d: duplicate player %q for metric %q", ErrInvalidBatch, i, r.PlayerID, r.MetricKey)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// recordResult updates the replace counters. A failed batch id is forgotten
// so the client can resubmit it.
func (s *Service) recordResult(job model.ReplaceJob, res ranking.Result, err error) {
	last := &lastReplace{
		BatchID:  job.BatchID,
		At:       time.Now(),
		Rows:     res.Rows,
		Groups:   res.Groups,
		Offline:  res.Offline,
		Duration: time.Since(job.SubmittedAt),
	}
	if err != nil {
		s.deduper.Unrecord(context.Background(), job.BatchID)
		s.failed.Add(1)
		last.Err = err.Error()
		s.logger.Warn(context.Background(), "replace failed; batch id released for retry",
			logger.String("batchID", job.BatchID), logger.Error(err))
	} else {
		s.processed.Add(1)
	}
	s.lastMu.Lock()
	s.last = last
	s.lastMu.Unlock()
}

// Page returns one leaderboard page. pageSize is capped at the configured maximum.
func (s *Service) Page(ctx context.Context, metricKey string, pageNum, pageSize int) ([]model.RankRecord, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return r.Page(ctx, metricKey, pageNum, pageSize)
}

// FindByPlayerAndMetric returns the player's row on a leaderboard.
func (s *Service) FindByPlayerAndMetric(ctx context.Context, playerID, metricKey string) (model.RankRecord, bool, error) {
	r, err := s.reader()
	if err != nil {
		return model.RankRecord{}, false, err
	}
	return r.FindByPlayerAndMetric(ctx, playerID, metricKey)
}

// FindByRankAndMetric returns the row holding rank on a leaderboard.
func (s *Service) FindByRankAndMetric(ctx context.Context, rank int, metricKey string) (model.RankRecord, bool, error) {
	r, err := s.reader()
	if err != nil {
		return model.RankRecord{}, false, err
	}
	return r.FindByRankAndMetric(ctx, rank, metricKey)
}

// FindExcluding returns a leaderboard without the given players.
func (s *Service) FindExcluding(ctx context.Context, playerIDs []string, metricKey string) ([]model.RankRecord, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	return r.FindExcluding(ctx, playerIDs, metricKey)
}

func (s *Service) reader() (*ranking.Recomputer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.recomputer, nil
}

// MaxPageSize returns the page size cap.
func (s *Service) MaxPageSize() int {
	return s.maxPageSize
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueCapacity":    s.queueSize,
		"dedupeCapacity":   s.dedupeSize,
		"insertChunkSize":  s.chunkSize,
		"maxPageSize":      s.maxPageSize,
		"batchesProcessed": s.processed.Load(),
		"batchesFailed":    s.failed.Load(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeSize"] = s.deduper.Size()
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalRows"] = n
		}
	}

	s.lastMu.Lock()
	if s.last != nil {
		last := map[string]interface{}{
			"batchId":    s.last.BatchID,
			"at":         s.last.At.Format(time.RFC3339),
			"rows":       s.last.Rows,
			"groups":     s.last.Groups,
			"offline":    s.last.Offline,
			"durationMs": s.last.Duration.Milliseconds(),
		}
		if s.last.Err != "" {
			last["error"] = s.last.Err
		}
		stats["lastReplace"] = last
	}
	s.lastMu.Unlock()

	return stats
}
