package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/optischema/optischema/recommend"
)

/*
fakeSession scripts latencies per statement and records every call, so tests
can assert exactly what touched the sandbox and in what order.
*/
type fakeSession struct {
	latencies map[string][]float64
	execErr   map[string]error
	execs     []string
	timed     []string
	blockTime bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		latencies: make(map[string][]float64),
		execErr:   make(map[string]error),
	}
}

func (f *fakeSession) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return f.execErr[sql]
}

func (f *fakeSession) Time(ctx context.Context, sql string) (float64, error) {
	if f.blockTime {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	f.timed = append(f.timed, sql)

	series, ok := f.latencies[sql]
	if !ok {
		return 0, errors.New("no scripted latency for statement")
	}
	latency := series[0]
	if len(series) > 1 {
		f.latencies[sql] = series[1:]
	}
	return latency, nil
}

func indexRec() *recommend.Recommendation {
	return &recommend.Recommendation{
		ID:          "rec-1",
		Fingerprint: "abc123",
		QueryText:   "SELECT * FROM orders WHERE status = 'pending'",
		Kind:        recommend.KindIndex,
		SQLFix:      "CREATE INDEX idx_orders_status ON orders (status)",
		RollbackSQL: "DROP INDEX IF EXISTS idx_orders_status",
	}
}

func TestBenchmarkIndexRecommendation(t *testing.T) {
	Convey("Given a reversible index recommendation", t, func() {
		session := newFakeSession()
		session.latencies["SELECT * FROM orders WHERE status = 'pending'"] = []float64{100, 40}

		validator := NewValidator(
			WithPool(NewPool(NewInstance(session))),
			WithRuns(1),
		)

		result, err := validator.Benchmark(context.Background(), indexRec())

		Convey("Then the benchmark succeeds with the measured improvement", func() {
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeSuccess)
			So(result.Succeeded(), ShouldBeTrue)
			So(result.BaselineLatency, ShouldEqual, 100)
			So(result.OptimizedLatency, ShouldEqual, 40)
			So(result.ImprovementPct, ShouldEqual, 60)
		})

		Convey("Then the fix was applied and rolled back in order", func() {
			So(session.execs, ShouldResemble, []string{
				"CREATE INDEX idx_orders_status ON orders (status)",
				"DROP INDEX IF EXISTS idx_orders_status",
			})
			So(result.RollbackAttempted, ShouldBeTrue)
			So(result.RollbackError, ShouldBeEmpty)
		})
	})
}

func TestBenchmarkRewriteRecommendation(t *testing.T) {
	Convey("Given a rewrite recommendation", t, func() {
		session := newFakeSession()
		session.latencies["SELECT a, b FROM t WHERE x = 1"] = []float64{80}
		session.latencies["SELECT a, b FROM t WHERE x = 1 LIMIT 100"] = []float64{20}

		validator := NewValidator(
			WithPool(NewPool(NewInstance(session))),
			WithRuns(1),
		)

		rec := &recommend.Recommendation{
			ID:        "rec-2",
			QueryText: "SELECT a, b FROM t WHERE x = 1",
			Kind:      recommend.KindRewrite,
			SQLFix:    "SELECT a, b FROM t WHERE x = 1 LIMIT 100",
		}

		result, err := validator.Benchmark(context.Background(), rec)

		Convey("Then the rewrite is timed without changing sandbox state", func() {
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeSuccess)
			So(result.ImprovementPct, ShouldEqual, 75)
			So(session.execs, ShouldBeEmpty)
			So(result.RollbackAttempted, ShouldBeFalse)
		})
	})
}

func TestBenchmarkRejectsNonReversible(t *testing.T) {
	Convey("Given a config recommendation without a rollback", t, func() {
		session := newFakeSession()
		validator := NewValidator(WithPool(NewPool(NewInstance(session))))

		rec := &recommend.Recommendation{
			ID:     "rec-3",
			Kind:   recommend.KindConfig,
			SQLFix: "ALTER SYSTEM RESET work_mem",
		}

		result, err := validator.Benchmark(context.Background(), rec)

		Convey("Then the benchmark is refused before touching the sandbox", func() {
			So(result, ShouldBeNil)
			So(recommend.IsValidationError(err), ShouldBeTrue)
			So(session.execs, ShouldBeEmpty)
			So(session.timed, ShouldBeEmpty)
		})
	})
}

func TestBenchmarkFailureRollsBack(t *testing.T) {
	Convey("Given a fix that fails to apply", t, func() {
		session := newFakeSession()
		rec := indexRec()
		session.latencies[rec.QueryText] = []float64{100}
		session.execErr[rec.SQLFix] = errors.New("out of disk")

		validator := NewValidator(
			WithPool(NewPool(NewInstance(session))),
			WithRuns(1),
		)

		result, err := validator.Benchmark(context.Background(), rec)

		Convey("Then the outcome is failed and the rollback still runs", func() {
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeFailed)
			So(result.Error, ShouldContainSubstring, "failed to apply fix")

			// A partially applied fix would poison every later benchmark,
			// so the restore is attempted even here.
			So(result.RollbackAttempted, ShouldBeTrue)
			So(result.RollbackError, ShouldBeEmpty)
			So(session.execs, ShouldResemble, []string{rec.SQLFix, rec.RollbackSQL})
		})
	})

	Convey("Given a rollback that fails after a successful apply", t, func() {
		session := newFakeSession()
		rec := indexRec()
		session.latencies[rec.QueryText] = []float64{100, 40}
		session.execErr[rec.RollbackSQL] = errors.New("index is locked")

		validator := NewValidator(
			WithPool(NewPool(NewInstance(session))),
			WithRuns(1),
		)

		result, err := validator.Benchmark(context.Background(), rec)

		Convey("Then the result records the rollback failure", func() {
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeSuccess)
			So(result.RollbackAttempted, ShouldBeTrue)
			So(result.RollbackError, ShouldContainSubstring, "locked")
		})
	})
}

func TestBenchmarkTimeout(t *testing.T) {
	Convey("Given a sandbox that never answers", t, func() {
		session := newFakeSession()
		session.blockTime = true

		validator := NewValidator(
			WithPool(NewPool(NewInstance(session))),
			WithRuns(1),
			WithTimeout(20*time.Millisecond),
		)

		result, err := validator.Benchmark(context.Background(), indexRec())

		Convey("Then the outcome is timed out", func() {
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeTimedOut)
		})
	})
}

func TestPoolAcquire(t *testing.T) {
	Convey("Given a pool with one instance", t, func() {
		instance := NewInstance(newFakeSession())
		pool := NewPool(instance)

		Convey("When the instance is taken", func() {
			got, err := pool.Acquire(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldEqual, instance)

			Convey("Then a second acquire blocks until release or deadline", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
				defer cancel()

				_, err := pool.Acquire(ctx)
				So(err, ShouldNotBeNil)

				pool.Release(got)
				again, err := pool.Acquire(context.Background())
				So(err, ShouldBeNil)
				So(again, ShouldEqual, instance)
			})
		})
	})
}

func TestMedian(t *testing.T) {
	Convey("Given latency series", t, func() {
		So(median([]float64{5}), ShouldEqual, 5)
		So(median([]float64{3, 1, 2}), ShouldEqual, 2)
		So(median([]float64{4, 1, 3, 2}), ShouldEqual, 2.5)
		So(median(nil), ShouldEqual, 0)
	})
}
