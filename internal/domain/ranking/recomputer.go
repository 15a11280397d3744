// Package ranking rebuilds and queries the per-metric leaderboard table.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/toprank/internal/adapters/repository"
	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/pkg/logger"
	"github.com/okian/toprank/pkg/metrics"
)

// FlagSource reads boolean configuration flags.
type FlagSource interface {
	Bool(key string) bool
}

// PrivilegedProvider lists players that never carry over as off-line rows
// while exclusion is enabled.
type PrivilegedProvider interface {
	PrivilegedPlayerIDs(ctx context.Context) ([]string, error)
}

// Result summarizes one Replace call.
type Result struct {
	Groups     int // metric groups rebuilt
	Rows       int // rows persisted
	Fresh      int // rows taken from the batch
	Offline    int // stored rows carried over
	Privileged int // size of the privileged set applied
	Chunks     int // InsertBatch calls
}

// Recomputer merges fresh batches with stored rows and republishes the table.
type Recomputer struct {
	store      repository.Store
	flags      FlagSource
	privileged PrivilegedProvider
	flagKey    string
	chunkSize  int
	logger     logger.Logger

	mu sync.Mutex
}

// New constructs a Recomputer. flags and privileged may be nil, which
// disables privileged exclusion.
func New(store repository.Store, flags FlagSource, privileged PrivilegedProvider, opts ...Option) *Recomputer {
	r := &Recomputer{
		store:      store,
		flags:      flags,
		privileged: privileged,
		flagKey:    DefaultFlagKey,
		chunkSize:  DefaultChunkSize,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type group struct {
	metric string
	fresh  []int // batch indexes
	rows   []entry
}

// entry is a ranked row; batchIdx is -1 for carried-over rows.
type entry struct {
	rec      model.RankRecord
	batchIdx int
}

// Replace rebuilds the table from batch. Every metric group touched by the
// batch is the union of its fresh rows and the stored rows of players absent
// from the batch (and from the privileged set when exclusion is on), ranked
// 1..N by value descending. The previous table is deleted and the merged
// rows are inserted in chunks, all inside one store unit of work.
//
// An empty batch is a no-op and does not touch the store.
func (r *Recomputer) Replace(ctx context.Context, batch model.Batch) (Result, error) {
	if len(batch) == 0 {
		return Result{}, nil
	}

	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.replace(ctx, batch)
	if err != nil {
		metrics.RecordReplace("error", time.Since(start))
		metrics.RecordErrorByComponent("ranking", "replace_error")
		r.logger.Error(ctx, "replace failed", logger.Int("records", len(batch)), logger.Error(err))
		return Result{}, err
	}

	metrics.RecordReplace("ok", time.Since(start))
	metrics.RecordReplaceResult(res.Groups, res.Rows, res.Offline, res.Privileged)
	r.logger.Debug(ctx, "replace completed",
		logger.Int("groups", res.Groups),
		logger.Int("rows", res.Rows),
		logger.Int("offline", res.Offline),
		logger.Int("chunks", res.Chunks),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (r *Recomputer) replace(ctx context.Context, batch model.Batch) (Result, error) {
	privileged, err := r.privilegedIDs(ctx)
	if err != nil {
		return Result{}, err
	}
	exclude := union(batch.PlayerIDs(), privileged)
	groups := groupByMetric(batch)

	var res Result
	err = r.store.Atomically(ctx, func(ctx context.Context, tx repository.Tx) error {
		offline := 0
		for _, g := range groups {
			stored, err := tx.List(ctx, excludingQuery(g.metric, exclude))
			if err != nil {
				return fmt.Errorf("%w: load off-line rows for %q: %w", ErrStore, g.metric, err)
			}
			g.rows = make([]entry, 0, len(g.fresh)+len(stored))
			for _, i := range g.fresh {
				g.rows = append(g.rows, entry{rec: batch[i], batchIdx: i})
			}
			for _, rec := range stored {
				g.rows = append(g.rows, entry{rec: rec, batchIdx: -1})
			}
			offline += len(stored)
			rankGroup(g.rows)
		}

		rows := assignRowIDs(len(batch), groups)

		if err := tx.DeleteAll(ctx); err != nil {
			return fmt.Errorf("%w: delete all: %w", ErrStore, err)
		}
		chunks := 0
		for lo := 0; lo < len(rows); lo += r.chunkSize {
			hi := min(lo+r.chunkSize, len(rows))
			if err := tx.InsertBatch(ctx, rows[lo:hi]); err != nil {
				return fmt.Errorf("%w: insert rows %d..%d: %w", ErrStore, lo+1, hi, err)
			}
			metrics.RecordInsertChunk()
			chunks++
		}

		res = Result{
			Groups:     len(groups),
			Rows:       len(rows),
			Fresh:      len(batch),
			Offline:    offline,
			Privileged: len(privileged),
			Chunks:     chunks,
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrStore) {
		err = fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (r *Recomputer) privilegedIDs(ctx context.Context) ([]string, error) {
	if r.flags == nil || r.privileged == nil || !r.flags.Bool(r.flagKey) {
		return nil, nil
	}
	ids, err := r.privileged.PrivilegedPlayerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivilegedLookup, err)
	}
	return ids, nil
}

// groupByMetric splits batch into metric groups in order of first appearance.
func groupByMetric(batch model.Batch) []*group {
	index := make(map[string]*group)
	var out []*group
	for i, rec := range batch {
		g, ok := index[rec.MetricKey]
		if !ok {
			g = &group{metric: rec.MetricKey}
			index[rec.MetricKey] = g
			out = append(out, g)
		}
		g.fresh = append(g.fresh, i)
	}
	return out
}

// rankGroup sorts rows by value descending, player id ascending, and sets
// rank to position + 1.
func rankGroup(rows []entry) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].rec, rows[j].rec
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.PlayerID < b.PlayerID
	})
	for i := range rows {
		rows[i].rec.Rank = i + 1
	}
}

// assignRowIDs flattens the ranked groups into table order. Batch entries
// keep ids 1..k in batch order; carried-over rows follow from k+1 in group
// then rank order. The returned slice is sorted by row id.
func assignRowIDs(k int, groups []*group) []model.RankRecord {
	total := 0
	for _, g := range groups {
		total += len(g.rows)
	}
	out := make([]model.RankRecord, total)

	next := k
	for _, g := range groups {
		for _, e := range g.rows {
			idx := e.batchIdx
			if idx < 0 {
				idx = next
				next++
			}
			e.rec.RowID = int64(idx + 1)
			out[idx] = e.rec
		}
	}
	return out
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func excludingQuery(metricKey string, playerIDs []string) repository.Query {
	return repository.Query{
		MetricKey:        metricKey,
		ExcludePlayerIDs: playerIDs,
		Order:            repository.OrderValueDesc,
	}
}

// Page returns the pageNum-th (1-based) window of metricKey's leaderboard.
func (r *Recomputer) Page(ctx context.Context, metricKey string, pageNum, pageSize int) ([]model.RankRecord, error) {
	rows, err := r.store.Page(ctx, repository.Query{MetricKey: metricKey, Order: repository.OrderValueDesc}, pageNum, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: page %q: %w", ErrStore, metricKey, err)
	}
	return rows, nil
}

// FindByPlayerAndMetric returns the player's row on metricKey's leaderboard.
func (r *Recomputer) FindByPlayerAndMetric(ctx context.Context, playerID, metricKey string) (model.RankRecord, bool, error) {
	if playerID == "" {
		return model.RankRecord{}, false, nil
	}
	rec, ok, err := r.store.SelectOne(ctx, repository.Query{MetricKey: metricKey, PlayerID: playerID})
	if err != nil {
		return model.RankRecord{}, false, fmt.Errorf("%w: find player %q on %q: %w", ErrStore, playerID, metricKey, err)
	}
	return rec, ok, nil
}

// FindByRankAndMetric returns the row holding rank on metricKey's leaderboard.
func (r *Recomputer) FindByRankAndMetric(ctx context.Context, rank int, metricKey string) (model.RankRecord, bool, error) {
	if rank < 1 {
		return model.RankRecord{}, false, nil
	}
	rec, ok, err := r.store.SelectOne(ctx, repository.Query{MetricKey: metricKey, Rank: rank, Order: repository.OrderValueDesc})
	if err != nil {
		return model.RankRecord{}, false, fmt.Errorf("%w: find rank %d on %q: %w", ErrStore, rank, metricKey, err)
	}
	return rec, ok, nil
}

// FindExcluding returns metricKey's rows whose player is not in playerIDs,
// ordered by value descending. An empty playerIDs excludes nothing.
func (r *Recomputer) FindExcluding(ctx context.Context, playerIDs []string, metricKey string) ([]model.RankRecord, error) {
	rows, err := r.store.List(ctx, excludingQuery(metricKey, playerIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: find excluding on %q: %w", ErrStore, metricKey, err)
	}
	return rows, nil
}
