package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/payday/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Schedule, convey.ShouldEqual, "0 * * * *")
			convey.So(cfg.RefreshStaleAfter(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.RankingCacheSize, convey.ShouldEqual, 256)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "payday")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "payouts")
			convey.So(cfg.MetricsBucketsMs, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"unknown store", func(c *config.Config) { c.Store = "sqlite" }},
		{"postgres without url", func(c *config.Config) { c.Store = config.StorePostgres }},
		{"negative staleness", func(c *config.Config) { c.RefreshStaleAfterMinutes = -1 }},
		{"no workers", func(c *config.Config) { c.WorkerCount = 0 }},
		{"no queue", func(c *config.Config) { c.QueueSize = 0 }},
		{"no cache", func(c *config.Config) { c.RankingCacheSize = 0 }},
		{"bad schedule", func(c *config.Config) { c.Schedule = "every tuesday" }},
		{"no metrics namespace", func(c *config.Config) { c.MetricsNamespace = "" }},
		{"unordered buckets", func(c *config.Config) { c.MetricsBucketsMs = []float64{10, 5} }},
	}

	convey.Convey("Given invalid configurations", t, func() {
		for _, tc := range cases {
			convey.Convey(tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("postgres with a url is accepted", func() {
			cfg := config.New()
			cfg.Store = config.StorePostgres
			cfg.DatabaseURL = "postgres://localhost/payday"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
