package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	worker "github.com/okian/toprank/internal/adapters/mq/worker"
	model "github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/internal/domain/ranking"
	logging "github.com/okian/toprank/pkg/logger"
)

type mockQueue struct {
	jobs      chan worker.Job
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan worker.Job, 100)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(id string, players ...string) {
	batch := make(model.Batch, len(players))
	for i, p := range players {
		batch[i] = model.RankRecord{MetricKey: "kills", PlayerID: p, Value: float64(i)}
	}
	mq.jobs <- worker.Job{BatchID: id, Records: batch, SubmittedAt: time.Now()}
}

type mockReplacer struct {
	mu     sync.Mutex
	seen   []string
	errFor map[string]error
	delay  time.Duration
}

func newMockReplacer() *mockReplacer {
	return &mockReplacer{errFor: make(map[string]error)}
}

func (m *mockReplacer) Replace(ctx context.Context, batch model.Batch) (ranking.Result, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	first := batch[0].PlayerID
	if err, ok := m.errFor[first]; ok {
		return ranking.Result{}, err
	}
	m.seen = append(m.seen, first)
	return ranking.Result{Rows: len(batch), Groups: 1}, nil
}

func (m *mockReplacer) processed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

type results struct {
	mu   sync.Mutex
	ok   int
	errs []error
}

func (r *results) handle(job worker.Job, res ranking.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.ok++
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		queue := newMockQueue()
		replacer := newMockReplacer()
		var got results
		w := worker.NewInMemoryWorker(queue, replacer,
			worker.WithName("test-worker"),
			worker.WithResultHandler(got.handle),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued", func() {
			queue.add("b1", "alice", "bob")
			queue.add("b2", "carol")
			_ = queue.Close()
			<-w.Done()

			convey.Convey("Then they are replaced in submission order", func() {
				convey.So(replacer.processed(), convey.ShouldResemble, []string{"alice", "carol"})
				convey.So(got.ok, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a replace fails", func() {
			replacer.errFor["bad"] = errors.New("store down")
			queue.add("b1", "bad")
			queue.add("b2", "good")
			_ = queue.Close()
			<-w.Done()

			convey.Convey("Then the worker reports it and keeps going", func() {
				convey.So(got.errs, convey.ShouldHaveLength, 1)
				convey.So(got.errs[0].Error(), convey.ShouldContainSubstring, "store down")
				convey.So(replacer.processed(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		queue := newMockQueue()
		replacer := newMockReplacer()
		var got results

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, queue, replacer)
			convey.So(pool.Size(), convey.ShouldEqual, 1)
		})

		convey.Convey("When processing many jobs with several workers", func() {
			pool := worker.NewPool(4, queue, replacer, worker.WithPoolResultHandler(got.handle))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := 0; i < 50; i++ {
				queue.add(fmt.Sprintf("b%d", i), fmt.Sprintf("p%d", i))
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then shutdown drains every pending job", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(replacer.processed(), convey.ShouldHaveLength, 50)
				convey.So(got.ok, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When shutdown outlives its deadline", func() {
			replacer.delay = 200 * time.Millisecond
			pool := worker.NewPool(1, queue, replacer)
			pool.Start(context.Background())
			for i := 0; i < 5; i++ {
				queue.add(fmt.Sprintf("b%d", i), fmt.Sprintf("p%d", i))
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then it reports the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
