// Package repository defines the ranking store contract and its implementations.
package repository

import (
	"context"
	"math"

	"github.com/okian/toprank/internal/domain/model"
)

// Order selects the row order of List and Page.
type Order int

const (
	// OrderRowID returns rows in storage (row id) order.
	OrderRowID Order = iota
	// OrderValueDesc returns rows by value descending, ties by player id ascending.
	OrderValueDesc
)

// Query describes which rows an operation targets. Zero-valued fields match
// everything; MetricKey is the only field every caller sets.
type Query struct {
	MetricKey        string
	PlayerID         string   // equality, "" = any
	Rank             int      // equality, 0 = any
	ExcludePlayerIDs []string // "not in"; empty excludes nothing
	Order            Order
}

// Reader is the read side of the ranking table.
type Reader interface {
	// SelectOne returns the first row matching q; ok is false when nothing matches.
	SelectOne(ctx context.Context, q Query) (rec model.RankRecord, ok bool, err error)
	// List returns every row matching q in q.Order.
	List(ctx context.Context, q Query) ([]model.RankRecord, error)
	// Page returns the pageNum-th window (1-based) of pageSize rows matching q.
	Page(ctx context.Context, q Query, pageNum, pageSize int) ([]model.RankRecord, error)
	// Count returns the number of rows in the table.
	Count(ctx context.Context) (int, error)
}

// Writer is the write side of the ranking table.
type Writer interface {
	DeleteAll(ctx context.Context) error
	InsertBatch(ctx context.Context, records []model.RankRecord) error
}

// Tx is the view handed to Atomically callbacks.
type Tx interface {
	Reader
	Writer
}

// Store provides read/write access to the persisted ranking table.
type Store interface {
	Reader
	Writer

	// Atomically runs fn in a unit of work. Readers outside fn observe either
	// the table before fn or the table after fn returned nil, never a mix.
	// A non-nil error from fn discards every write made through tx.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// pageBounds converts a 1-based page request into slice bounds over n rows.
// pageNum < 1 is treated as 1; pageSize < 1 yields an empty window.
func pageBounds(n, pageNum, pageSize int) (lo, hi int) {
	if pageSize < 1 {
		return 0, 0
	}
	if pageNum < 1 {
		pageNum = 1
	}
	if pageNum-1 > math.MaxInt/pageSize {
		return 0, 0
	}
	lo = (pageNum - 1) * pageSize
	if lo >= n {
		return 0, 0
	}
	hi = lo + pageSize
	if hi > n {
		hi = n
	}
	return lo, hi
}

// pageOffset is the SQL flavour of pageBounds. ok is false when the window
// is empty, including offsets past math.MaxInt.
func pageOffset(pageNum, pageSize int) (offset, limit int, ok bool) {
	if pageSize < 1 {
		return 0, 0, false
	}
	if pageNum < 1 {
		pageNum = 1
	}
	if pageNum-1 > math.MaxInt/pageSize {
		return 0, 0, false
	}
	return (pageNum - 1) * pageSize, pageSize, true
}
