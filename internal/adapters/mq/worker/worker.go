// Package worker drains the replace queue into the ranking recomputer.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/ranking"
	"github.com/okian/toprank/pkg/logger"
	"github.com/okian/toprank/pkg/metrics"
)

// Job abstracts what workers read off the queue.
type Job = model.ReplaceJob

// Replacer rebuilds the ranking table from a batch.
type Replacer interface {
	Replace(ctx context.Context, batch model.Batch) (ranking.Result, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// ResultHandler observes a finished job. err is nil on success.
type ResultHandler func(job Job, res ranking.Result, err error)

// Worker processes replace jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue    Queue
	replacer Replacer
	name     string
	onDone   ResultHandler

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, replacer Replacer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		replacer: replacer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	res, err := w.replacer.Replace(ctx, job.Records)
	metrics.RecordWorkerJob(time.Since(start))

	if w.onDone != nil {
		w.onDone(job, res, err)
	}
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "replace_error")
		return fmt.Errorf("replace batch %s: %w", job.BatchID, err)
	}

	w.logger.Debug(ctx, "batch replaced",
		logger.String("batchID", job.BatchID),
		logger.Int("rows", res.Rows),
		logger.Duration("queued", start.Sub(job.SubmittedAt)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	onDone  ResultHandler
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. Counts below 1 become 1,
// which keeps replaces in submission order.
func NewPool(workerCount int, queue Queue, replacer Replacer, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, replacer,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
			WithResultHandler(p.onDone),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain pending jobs.
// When ctx expires first, in-flight work is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
		if timedOut {
			break
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
