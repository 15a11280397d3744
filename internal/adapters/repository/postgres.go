package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/toprank/internal/domain/model"
)

var recordColumns = []string{"row_id", "metric_key", "player_id", "value", "rank"}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore persists the ranking table in PostgreSQL. Atomically maps to
// a READ COMMITTED transaction, so DELETE plus the batched INSERTs publish
// as one commit.
type PostgresStore struct {
	pgQueries

	pool   *pgxpool.Pool
	mu     sync.RWMutex
	closed bool
}

// NewPostgresStore connects a pool to databaseURL and verifies it with a ping.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg := defaultPostgresConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.maxConns
	poolCfg.MinConns = cfg.minConns
	poolCfg.MaxConnLifetime = cfg.maxConnLifetime

	connectCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgresStoreFromPool(pool, WithTable(cfg.table)), nil
}

// NewPostgresStoreFromPool wraps an existing pool. Only WithTable is honored.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	cfg := defaultPostgresConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &PostgresStore{
		pgQueries: pgQueries{db: pool, table: cfg.table},
		pool:      pool,
	}
}

// EnsureSchema creates the ranking table and its lookup index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.table) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(table string) []string {
	ident := pgx.Identifier{table}.Sanitize()
	index := pgx.Identifier{table + "_metric_value_idx"}.Sanitize()
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + ident + ` (
			row_id     BIGINT PRIMARY KEY,
			metric_key TEXT NOT NULL,
			player_id  TEXT NOT NULL,
			value      DOUBLE PRECISION NOT NULL,
			rank       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + ident + ` (metric_key, value DESC, player_id COLLATE "C")`,
	}
}

// Atomically runs fn inside a transaction, committing when fn returns nil.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransaction, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, pgQueries{db: tx, table: s.table}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.pool.Close()
	}
	return nil
}

// pgQueries implements Reader and Writer over any dbtx.
type pgQueries struct {
	db    dbtx
	table string
}

type pgRecord struct {
	RowID     int64   `db:"row_id"`
	MetricKey string  `db:"metric_key"`
	PlayerID  string  `db:"player_id"`
	Value     float64 `db:"value"`
	Rank      int     `db:"rank"`
}

func (r pgRecord) toModel() model.RankRecord {
	return model.RankRecord{RowID: r.RowID, MetricKey: r.MetricKey, PlayerID: r.PlayerID, Value: r.Value, Rank: r.Rank}
}

func (p pgQueries) SelectOne(ctx context.Context, q Query) (model.RankRecord, bool, error) {
	defer observe("select_one", time.Now())
	sql, args := buildSelect(p.table, q)
	sql, args = appendLimit(sql, args, 1, 0)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return model.RankRecord{}, false, fmt.Errorf("select one: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[pgRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RankRecord{}, false, nil
	}
	if err != nil {
		return model.RankRecord{}, false, fmt.Errorf("select one: %w", err)
	}
	return rec.toModel(), true, nil
}

func (p pgQueries) List(ctx context.Context, q Query) ([]model.RankRecord, error) {
	defer observe("list", time.Now())
	sql, args := buildSelect(p.table, q)
	return p.collect(ctx, "list", sql, args)
}

func (p pgQueries) Page(ctx context.Context, q Query, pageNum, pageSize int) ([]model.RankRecord, error) {
	defer observe("page", time.Now())
	offset, limit, ok := pageOffset(pageNum, pageSize)
	if !ok {
		return []model.RankRecord{}, nil
	}
	sql, args := buildSelect(p.table, q)
	sql, args = appendLimit(sql, args, limit, offset)
	return p.collect(ctx, "page", sql, args)
}

func (p pgQueries) Count(ctx context.Context) (int, error) {
	rows, err := p.db.Query(ctx, `SELECT count(*) FROM `+pgx.Identifier{p.table}.Sanitize())
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(n), nil
}

func (p pgQueries) DeleteAll(ctx context.Context) error {
	defer observe("delete_all", time.Now())
	if _, err := p.db.Exec(ctx, `DELETE FROM `+pgx.Identifier{p.table}.Sanitize()); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func (p pgQueries) InsertBatch(ctx context.Context, records []model.RankRecord) (err error) {
	defer observe("insert_batch", time.Now())
	if len(records) == 0 {
		return nil
	}
	stmt := insertStatement(p.table)
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(stmt, r.RowID, r.MetricKey, r.PlayerID, r.Value, r.Rank)
	}

	br := p.db.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("insert batch: %w", cerr)
		}
	}()
	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert batch row %d: %w", records[i].RowID, err)
		}
	}
	return nil
}

func insertStatement(table string) string {
	return `INSERT INTO ` + pgx.Identifier{table}.Sanitize() + ` (` + strings.Join(recordColumns, ", ") +
		`) VALUES ($1, $2, $3, $4, $5)`
}

func (p pgQueries) collect(ctx context.Context, op, sql string, args []any) ([]model.RankRecord, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgRecord])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]model.RankRecord, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// buildSelect renders q as a parameterized SELECT over table.
func buildSelect(table string, q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.MetricKey}

	b.WriteString(`SELECT `)
	b.WriteString(strings.Join(recordColumns, ", "))
	b.WriteString(` FROM `)
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(` WHERE metric_key = $1`)

	if q.PlayerID != "" {
		args = append(args, q.PlayerID)
		b.WriteString(` AND player_id = $` + strconv.Itoa(len(args)))
	}
	if q.Rank != 0 {
		args = append(args, q.Rank)
		b.WriteString(` AND rank = $` + strconv.Itoa(len(args)))
	}
	if len(q.ExcludePlayerIDs) > 0 {
		args = append(args, q.ExcludePlayerIDs)
		b.WriteString(` AND NOT (player_id = ANY($` + strconv.Itoa(len(args)) + `))`)
	}

	switch q.Order {
	case OrderValueDesc:
		b.WriteString(` ORDER BY value DESC, player_id COLLATE "C" ASC`)
	default:
		b.WriteString(` ORDER BY row_id ASC`)
	}
	return b.String(), args
}

func appendLimit(sql string, args []any, limit, offset int) (string, []any) {
	args = append(args, limit)
	sql += ` LIMIT $` + strconv.Itoa(len(args))
	if offset > 0 {
		args = append(args, offset)
		sql += ` OFFSET $` + strconv.Itoa(len(args))
	}
	return sql, args
}

// Compile-time interface checks.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Tx    = pgQueries{}
	_ Tx    = (*memTx)(nil)
)
