package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/toprank/internal/domain/model"
)

func seed() []model.RankRecord {
	return []model.RankRecord{
		{RowID: 1, MetricKey: "kills", PlayerID: "bob", Value: 10, Rank: 2},
		{RowID: 2, MetricKey: "kills", PlayerID: "alice", Value: 20, Rank: 1},
		{RowID: 3, MetricKey: "deaths", PlayerID: "alice", Value: 3, Rank: 1},
		{RowID: 4, MetricKey: "kills", PlayerID: "carol", Value: 10, Rank: 2},
		{RowID: 5, MetricKey: "kills", PlayerID: "dave", Value: 5, Rank: 3},
	}
}

func playerIDs(rows []model.RankRecord) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.PlayerID
	}
	return out
}

func TestMemoryStore_Reads(t *testing.T) {
	convey.Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithRecords(seed()...))

		convey.Convey("List in row id order keeps insertion order", func() {
			rows, err := s.List(ctx, Query{MetricKey: "kills"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(playerIDs(rows), convey.ShouldResemble, []string{"bob", "alice", "carol", "dave"})
		})

		convey.Convey("List by value orders descending with player id tie-break", func() {
			rows, err := s.List(ctx, Query{MetricKey: "kills", Order: OrderValueDesc})
			convey.So(err, convey.ShouldBeNil)
			convey.So(playerIDs(rows), convey.ShouldResemble, []string{"alice", "bob", "carol", "dave"})
		})

		convey.Convey("SelectOne by player finds the row", func() {
			rec, ok, err := s.SelectOne(ctx, Query{MetricKey: "deaths", PlayerID: "alice"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(rec.RowID, convey.ShouldEqual, 3)
		})

		convey.Convey("SelectOne by rank returns the first stored row of that rank", func() {
			rec, ok, err := s.SelectOne(ctx, Query{MetricKey: "kills", Rank: 2})
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(rec.PlayerID, convey.ShouldEqual, "bob")
		})

		convey.Convey("SelectOne on a missing metric reports not found", func() {
			_, ok, err := s.SelectOne(ctx, Query{MetricKey: "wins", PlayerID: "alice"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Exclusion removes listed players only", func() {
			rows, err := s.List(ctx, Query{MetricKey: "kills", ExcludePlayerIDs: []string{"bob", "zed"}})
			convey.So(err, convey.ShouldBeNil)
			convey.So(playerIDs(rows), convey.ShouldResemble, []string{"alice", "carol", "dave"})
		})

		convey.Convey("Paging walks the ordered rows", func() {
			q := Query{MetricKey: "kills", Order: OrderValueDesc}
			p1, _ := s.Page(ctx, q, 1, 3)
			p2, _ := s.Page(ctx, q, 2, 3)
			p3, _ := s.Page(ctx, q, 3, 3)
			p0, _ := s.Page(ctx, q, 0, 2)
			empty, _ := s.Page(ctx, q, 1, 0)

			convey.So(playerIDs(p1), convey.ShouldResemble, []string{"alice", "bob", "carol"})
			convey.So(playerIDs(p2), convey.ShouldResemble, []string{"dave"})
			convey.So(p3, convey.ShouldBeEmpty)
			convey.So(playerIDs(p0), convey.ShouldResemble, []string{"alice", "bob"})
			convey.So(empty, convey.ShouldBeEmpty)
		})

		convey.Convey("A page far past the end is empty", func() {
			q := Query{MetricKey: "deaths", Order: OrderValueDesc}
			rows, err := s.Page(ctx, q, 1<<61+1, 8)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldBeEmpty)

			rows, err = s.Page(ctx, q, math.MaxInt, math.MaxInt)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldBeEmpty)
		})

		convey.Convey("Count covers every metric", func() {
			n, err := s.Count(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 5)
		})
	})
}

func TestMemoryStore_Atomically(t *testing.T) {
	convey.Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithRecords(seed()...))
		next := []model.RankRecord{{RowID: 1, MetricKey: "wins", PlayerID: "erin", Value: 1, Rank: 1}}

		convey.Convey("A successful unit replaces the table", func() {
			err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
				if err := tx.DeleteAll(ctx); err != nil {
					return err
				}
				return tx.InsertBatch(ctx, next)
			})
			convey.So(err, convey.ShouldBeNil)

			rows, _ := s.List(ctx, Query{MetricKey: "wins"})
			convey.So(cmp.Diff(next, rows), convey.ShouldBeEmpty)
			n, _ := s.Count(ctx)
			convey.So(n, convey.ShouldEqual, 1)
		})

		convey.Convey("A failing unit leaves the table untouched", func() {
			boom := errors.New("boom")
			err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
				_ = tx.DeleteAll(ctx)
				_ = tx.InsertBatch(ctx, next)
				return boom
			})
			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)

			n, _ := s.Count(ctx)
			convey.So(n, convey.ShouldEqual, 5)
		})

		convey.Convey("Readers do not see staged writes", func() {
			var seen int
			_ = s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
				_ = tx.DeleteAll(ctx)
				seen, _ = s.Count(ctx)
				return nil
			})
			convey.So(seen, convey.ShouldEqual, 5)
		})

		convey.Convey("A cancelled context discards the unit", func() {
			cctx, cancel := context.WithCancel(ctx)
			err := s.Atomically(cctx, func(ctx context.Context, tx Tx) error {
				_ = tx.DeleteAll(ctx)
				cancel()
				return nil
			})
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			n, _ := s.Count(ctx)
			convey.So(n, convey.ShouldEqual, 5)
		})

		convey.Convey("Concurrent readers never observe a partial table", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})
			bad := make(chan int, 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					n, _ := s.Count(ctx)
					if n != 5 && n != 2 {
						select {
						case bad <- n:
						default:
						}
					}
				}
			}()
			for i := 0; i < 50; i++ {
				_ = s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
					_ = tx.DeleteAll(ctx)
					if err := tx.InsertBatch(ctx, seed()[:1]); err != nil {
						return err
					}
					return tx.InsertBatch(ctx, seed()[1:2])
				})
			}
			close(stop)
			wg.Wait()
			close(bad)
			_, partial := <-bad
			convey.So(partial, convey.ShouldBeFalse)
		})
	})
}

func TestMemoryStore_Close(t *testing.T) {
	convey.Convey("Given a closed memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithRecords(seed()...))
		convey.So(s.Close(), convey.ShouldBeNil)

		convey.Convey("Every call reports ErrClosed", func() {
			_, err := s.List(ctx, Query{MetricKey: "kills"})
			convey.So(errors.Is(err, ErrClosed), convey.ShouldBeTrue)
			_, _, err = s.SelectOne(ctx, Query{MetricKey: "kills"})
			convey.So(errors.Is(err, ErrClosed), convey.ShouldBeTrue)
			convey.So(errors.Is(s.DeleteAll(ctx), ErrClosed), convey.ShouldBeTrue)
		})
	})
}

func TestPageBounds(t *testing.T) {
	convey.Convey("Given page requests over 5 rows", t, func() {
		cases := []struct {
			num, size, lo, hi int
		}{
			{1, 2, 0, 2},
			{3, 2, 4, 5},
			{4, 2, 0, 0},
			{0, 2, 0, 2},
			{-3, 2, 0, 2},
			{1, 0, 0, 0},
			{1, -1, 0, 0},
			{1<<61 + 1, 8, 0, 0},
			{math.MaxInt, 2, 0, 0},
		}
		for _, c := range cases {
			lo, hi := pageBounds(5, c.num, c.size)
			convey.So([]int{lo, hi}, convey.ShouldResemble, []int{c.lo, c.hi})
		}
	})
}
