package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/pkg/metrics"
)

// MemoryStore is an in-process Store. Atomically builds the next table on a
// staging copy and publishes it with a single pointer swap.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []model.RankRecord // published table, treated as immutable
	closed bool

	// txMu serializes writers so staging copies never race each other.
	txMu sync.Mutex
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// less reports whether a ranks before b: value desc, then player id asc.
func less(a, b model.RankRecord) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.PlayerID < b.PlayerID
}

func matches(r model.RankRecord, q Query, excluded map[string]struct{}) bool {
	if r.MetricKey != q.MetricKey {
		return false
	}
	if q.PlayerID != "" && r.PlayerID != q.PlayerID {
		return false
	}
	if q.Rank != 0 && r.Rank != q.Rank {
		return false
	}
	if _, skip := excluded[r.PlayerID]; skip {
		return false
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// filter returns a fresh slice of rows matching q in q.Order.
func filter(rows []model.RankRecord, q Query) []model.RankRecord {
	excluded := toSet(q.ExcludePlayerIDs)
	out := make([]model.RankRecord, 0)
	for _, r := range rows {
		if matches(r, q, excluded) {
			out = append(out, r)
		}
	}
	if q.Order == OrderValueDesc {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func (s *MemoryStore) snapshot() ([]model.RankRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.rows, nil
}

// SelectOne returns the first row matching q.
func (s *MemoryStore) SelectOne(ctx context.Context, q Query) (model.RankRecord, bool, error) {
	defer observe("select_one", time.Now())
	rows, err := s.snapshot()
	if err != nil {
		return model.RankRecord{}, false, err
	}
	return selectOne(rows, q)
}

// List returns all rows matching q.
func (s *MemoryStore) List(ctx context.Context, q Query) ([]model.RankRecord, error) {
	defer observe("list", time.Now())
	rows, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return filter(rows, q), nil
}

// Page returns one page of rows matching q.
func (s *MemoryStore) Page(ctx context.Context, q Query, pageNum, pageSize int) ([]model.RankRecord, error) {
	defer observe("page", time.Now())
	rows, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return page(rows, q, pageNum, pageSize), nil
}

// Count returns the number of published rows.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	rows, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// DeleteAll publishes an empty table.
func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	return s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteAll(ctx)
	})
}

// InsertBatch appends records to the published table.
func (s *MemoryStore) InsertBatch(ctx context.Context, records []model.RankRecord) error {
	return s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertBatch(ctx, records)
	})
}

// Atomically runs fn against a staging copy and swaps it in on success.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	current, err := s.snapshot()
	if err != nil {
		return err
	}
	tx := &memTx{rows: append([]model.RankRecord(nil), current...)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.rows = tx.rows
	return nil
}

// Close rejects every subsequent call.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rows = nil
	return nil
}

// memTx is the staging table of one Atomically call.
type memTx struct {
	rows []model.RankRecord
}

func (t *memTx) SelectOne(ctx context.Context, q Query) (model.RankRecord, bool, error) {
	return selectOne(t.rows, q)
}

func (t *memTx) List(ctx context.Context, q Query) ([]model.RankRecord, error) {
	return filter(t.rows, q), nil
}

func (t *memTx) Page(ctx context.Context, q Query, pageNum, pageSize int) ([]model.RankRecord, error) {
	return page(t.rows, q, pageNum, pageSize), nil
}

func (t *memTx) Count(ctx context.Context) (int, error) {
	return len(t.rows), nil
}

func (t *memTx) DeleteAll(ctx context.Context) error {
	t.rows = nil
	return nil
}

func (t *memTx) InsertBatch(ctx context.Context, records []model.RankRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.rows = append(t.rows, records...)
	return nil
}

func selectOne(rows []model.RankRecord, q Query) (model.RankRecord, bool, error) {
	found := filter(rows, q)
	if len(found) == 0 {
		return model.RankRecord{}, false, nil
	}
	return found[0], true, nil
}

func page(rows []model.RankRecord, q Query, pageNum, pageSize int) []model.RankRecord {
	found := filter(rows, q)
	lo, hi := pageBounds(len(found), pageNum, pageSize)
	return found[lo:hi]
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, time.Since(start))
}
