package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/velatorre/crossline/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When environment variables override defaults", func() {
			t.Setenv("CROSSLINE_ADDR", ":7070")
			t.Setenv("CROSSLINE_TASK_QUEUE_SIZE", "500")
			t.Setenv("CROSSLINE_SHARED_KEY", "sekret")
			t.Setenv("CROSSLINE_TIMING_BASE_URL", "https://timing.example.com")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the overrides win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.SharedKey, convey.ShouldEqual, "sekret")
				convey.So(cfg.TimingBaseURL, convey.ShouldEqual, "https://timing.example.com")
				convey.So(cfg.DedupeFreshnessSeconds, convey.ShouldEqual, 60)
			})
		})

		convey.Convey("When a config file is layered under env", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			convey.So(os.WriteFile(path, []byte("addr: \":6060\"\nworker_count: 3\n"), 0o600), convey.ShouldBeNil)
			t.Setenv("CROSSLINE_CONFIG", path)
			t.Setenv("CROSSLINE_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env beats file beats defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the config file is missing", func() {
			t.Setenv("CROSSLINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then the load error is surfaced", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When validation fails", func() {
			t.Setenv("CROSSLINE_DEDUPE_FRESHNESS_SECONDS", "0")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid-config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
