package config

import (
	"testing"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("POLLING_INTERVAL", "")
		t.Setenv("LLM_PROVIDER", "")
		t.Setenv("STORAGE_TYPE", "")

		cfg := New()

		Convey("Then the defaults apply", func() {
			So(cfg.PollingInterval, ShouldEqual, 30*time.Second)
			So(cfg.AnalysisInterval, ShouldEqual, 60*time.Second)
			So(cfg.MetricsWindow, ShouldEqual, 15*time.Minute)
			So(cfg.TopQueriesLimit, ShouldEqual, 10)
			So(cfg.Provider, ShouldEqual, "openai")
			So(cfg.OpenAIModel, ShouldEqual, "gpt-4o")
			So(cfg.CacheTTL, ShouldEqual, time.Hour)
			So(cfg.CacheSize, ShouldEqual, 1000)
			So(cfg.BenchmarkRuns, ShouldEqual, 5)
			So(cfg.StorageType, ShouldEqual, FileStorage)
			So(cfg.LogLevel, ShouldEqual, log.InfoLevel)
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("POLLING_INTERVAL", "10s")
		t.Setenv("TOP_QUERIES_LIMIT", "25")
		t.Setenv("LOG_LEVEL", "debug")

		cfg := New()

		So(cfg.PollingInterval, ShouldEqual, 10*time.Second)
		So(cfg.TopQueriesLimit, ShouldEqual, 25)
		So(cfg.LogLevel, ShouldEqual, log.DebugLevel)
	})

	Convey("Given a bare integer duration", t, func() {
		t.Setenv("POLLING_INTERVAL", "45")

		Convey("Then it is read as seconds", func() {
			So(New().PollingInterval, ShouldEqual, 45*time.Second)
		})
	})

	Convey("Given an unparseable duration", t, func() {
		t.Setenv("POLLING_INTERVAL", "soon")

		Convey("Then the fallback applies", func() {
			So(New().PollingInterval, ShouldEqual, 30*time.Second)
		})
	})
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:     "postgres://localhost:5432/app",
		TopQueriesLimit: 10,
		BenchmarkRuns:   5,
		Provider:        "openai",
		StorageType:     FileStorage,
	}
}

func TestValidate(t *testing.T) {
	Convey("Given a complete configuration", t, func() {
		So(validConfig().Validate(), ShouldBeNil)
	})

	Convey("Given a missing database URL", t, func() {
		cfg := validConfig()
		cfg.DatabaseURL = ""

		err := cfg.Validate()
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "DATABASE_URL")
	})

	Convey("Given a non-positive top queries limit", t, func() {
		cfg := validConfig()
		cfg.TopQueriesLimit = 0
		So(cfg.Validate(), ShouldNotBeNil)
	})

	Convey("Given a non-positive benchmark run count", t, func() {
		cfg := validConfig()
		cfg.BenchmarkRuns = -1
		So(cfg.Validate(), ShouldNotBeNil)
	})

	Convey("Given the deepseek provider", t, func() {
		cfg := validConfig()
		cfg.Provider = "deepseek"

		Convey("Then an API key is required", func() {
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.DeepSeekAPIKey = "sk-test"
			So(cfg.Validate(), ShouldBeNil)
		})
	})

	Convey("Given an unknown provider", t, func() {
		cfg := validConfig()
		cfg.Provider = "llama"
		So(cfg.Validate(), ShouldNotBeNil)
	})

	Convey("Given S3 storage without a bucket", t, func() {
		cfg := validConfig()
		cfg.StorageType = S3Storage

		So(cfg.Validate(), ShouldNotBeNil)

		cfg.S3Bucket = "tuning-records"
		So(cfg.Validate(), ShouldBeNil)
	})

	Convey("Given an unknown storage type", t, func() {
		cfg := validConfig()
		cfg.StorageType = "tape"
		So(cfg.Validate(), ShouldNotBeNil)
	})
}

func TestSetters(t *testing.T) {
	Convey("Given a configuration", t, func() {
		cfg := validConfig()

		Convey("Then empty values never overwrite", func() {
			cfg.SetDatabaseURL("")
			So(cfg.DatabaseURL, ShouldEqual, "postgres://localhost:5432/app")

			cfg.SetDatabaseURL("postgres://other:5432/app")
			So(cfg.DatabaseURL, ShouldEqual, "postgres://other:5432/app")
		})

		Convey("Then log levels parse case-insensitively", func() {
			cfg.SetLogLevel("DEBUG")
			So(cfg.LogLevel, ShouldEqual, log.DebugLevel)

			cfg.SetLogLevel("nonsense")
			So(cfg.LogLevel, ShouldEqual, log.InfoLevel)
		})
	})
}
