package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/toprank/internal/app"
	"github.com/okian/toprank/internal/adapters/repository"
	"github.com/okian/toprank/internal/domain/model"
	"github.com/okian/toprank/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func sample(metric, player string, value float64) model.RankRecord {
	return model.RankRecord{MetricKey: metric, PlayerID: player, Value: value}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(repository.NewMemoryStore())

		Convey("Then it should have sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 1)
			So(stats["insertChunkSize"], ShouldEqual, 1000)
			So(svc.MaxPageSize(), ShouldEqual, 100)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(repository.NewMemoryStore(),
			service.WithWorkerCount(2),
			service.WithQueueSize(8),
			service.WithDedupeSize(16),
			service.WithInsertChunkSize(10),
			service.WithMaxPageSize(5),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueCapacity"], ShouldEqual, 8)
			So(stats["dedupeCapacity"], ShouldEqual, 16)
			So(svc.MaxPageSize(), ShouldEqual, 5)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(repository.NewMemoryStore())

		Convey("Calls before Start report ErrNotStarted", func() {
			_, err := svc.Submit(ctx, "b1", model.Batch{sample("kills", "a", 1)})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Page(ctx, "kills", 1, 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Start is idempotent and Stop releases everything", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("A nil store cannot start", func() {
			So(service.New(nil).Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestService_Validation(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore())
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		cases := map[string]model.Batch{
			"missing metric":   {sample("", "a", 1)},
			"missing player":   {sample("kills", " ", 1)},
			"nan value":        {sample("kills", "a", math.NaN())},
			"infinite value":   {sample("kills", "a", math.Inf(1))},
			"duplicate player": {sample("kills", "a", 1), sample("kills", "a", 2)},
		}
		for name, batch := range cases {
			_, err := svc.SubmitSync(ctx, "", batch)
			So(errors.Is(err, service.ErrInvalidBatch), ShouldBeTrue)
			Printf("%s rejected\n", name)
		}

		Convey("The same player on two metrics is fine", func() {
			_, err := svc.SubmitSync(ctx, "", model.Batch{sample("kills", "a", 1), sample("deaths", "a", 2)})
			So(err, ShouldBeNil)
		})
	})
}
