package config_test

import (
	"errors"
	"testing"

	"github.com/okian/toprank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 1)
			convey.So(cfg.InsertChunkSize, convey.ShouldEqual, 1000)
			convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			convey.So(cfg.ExcludePrivileged, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Bool(t *testing.T) {
	convey.Convey("Given a config with privileged exclusion enabled", t, func() {
		cfg := config.New()
		cfg.ExcludePrivileged = true

		convey.Convey("Then the flag is readable by key", func() {
			convey.So(cfg.Bool(config.KeyExcludePrivileged), convey.ShouldBeTrue)
			convey.So(cfg.Bool(" EXCLUDE_PRIVILEGED "), convey.ShouldBeTrue)
		})

		convey.Convey("Then unknown keys read as false", func() {
			convey.So(cfg.Bool("isOp"), convey.ShouldBeFalse)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":     func(c *config.Config) { c.Addr = " " },
			"zero chunk":     func(c *config.Config) { c.InsertChunkSize = 0 },
			"zero page size": func(c *config.Config) { c.MaxPageSize = 0 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.Printf("%s rejected\n", name)
		}
	})
}
