package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/toprank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When created with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording batch ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("A new id is recorded", func() {
				So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("A repeated id is reported as seen", func() {
				d.SeenAndRecord(ctx, "batch-1")
				So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("An unrecorded id can be submitted again", func() {
				d.SeenAndRecord(ctx, "batch-1")
				d.Unrecord(ctx, "batch-1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
			})

			Convey("Unrecording an unknown id is a no-op", func() {
				d.SeenAndRecord(ctx, "batch-1")
				d.Unrecord(ctx, "batch-2")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the bound is reached", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i))
			}

			Convey("Then the oldest id is forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "batch-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "batch-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 20_000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 20_000)
				So(d.SeenAndRecord(ctx, "batch-0"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines race on the same ids", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then every id is fresh exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
