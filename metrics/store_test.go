package metrics

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func sampleAt(fp string, calls int64, total float64, at time.Time) QueryMetricSample {
	return QueryMetricSample{
		Fingerprint:        fp,
		RepresentativeText: "SELECT 1 /* " + fp + " */",
		Calls:              calls,
		TotalTime:          total,
		MinTime:            total / float64(calls) / 2,
		MaxTime:            total / float64(calls) * 5,
		CapturedAt:         at,
	}
}

func TestStoreAggregation(t *testing.T) {
	Convey("Given a store with samples from two cycles", t, func() {
		store := NewStore(WithWindow(15 * time.Minute))
		now := time.Now()

		store.Append([]QueryMetricSample{
			sampleAt("alpha", 60, 6000, now),
			sampleAt("beta", 5, 1000, now),
		}, 2)
		store.Append([]QueryMetricSample{
			sampleAt("alpha", 40, 4000, now),
		}, 1)

		Convey("When the window is aggregated", func() {
			merged := store.Aggregated()

			Convey("Then same-fingerprint samples merge", func() {
				So(merged, ShouldHaveLength, 2)
				So(merged[0].Fingerprint, ShouldEqual, "alpha")
				So(merged[0].Calls, ShouldEqual, 100)
				So(merged[0].TotalTime, ShouldEqual, 10000)
				So(merged[0].MeanTime, ShouldEqual, 100)
			})

			Convey("Then min and max span the merged samples", func() {
				So(merged[0].MinTime, ShouldEqual, 50)
				So(merged[0].MaxTime, ShouldEqual, 500)
			})

			Convey("Then time percentage is computed over the window total", func() {
				So(merged[0].TimePercentage, ShouldAlmostEqual, 10000.0/11000.0*100, 0.001)
				So(merged[1].TimePercentage, ShouldAlmostEqual, 1000.0/11000.0*100, 0.001)
			})
		})

		Convey("When the top statements are requested", func() {
			top := store.TopByTotalTime(1)

			So(top, ShouldHaveLength, 1)
			So(top[0].Fingerprint, ShouldEqual, "alpha")
		})

		Convey("When the summary is requested", func() {
			summary := store.Summary(10)

			So(summary.TotalQueries, ShouldEqual, 2)
			So(summary.NoiseStatements, ShouldEqual, 3)
			So(summary.SlowestQuery.Fingerprint, ShouldEqual, "beta")
			So(summary.MostCalledQuery.Fingerprint, ShouldEqual, "alpha")
			So(summary.TotalExecutionTime, ShouldEqual, 11000)
		})

		Convey("Then the first-seen text is the representative", func() {
			text, ok := store.Representative("alpha")
			So(ok, ShouldBeTrue)
			So(text, ShouldContainSubstring, "alpha")
		})
	})
}

func TestStoreWindowPruning(t *testing.T) {
	Convey("Given a store with a short window", t, func() {
		store := NewStore(WithWindow(10 * time.Minute))
		now := time.Now()

		store.Append([]QueryMetricSample{
			sampleAt("stale", 10, 100, now.Add(-20*time.Minute)),
			sampleAt("fresh", 10, 100, now),
		}, 0)

		Convey("Then expired samples are gone after the next append", func() {
			merged := store.Aggregated()

			So(merged, ShouldHaveLength, 1)
			So(merged[0].Fingerprint, ShouldEqual, "fresh")

			_, ok := store.Representative("stale")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestStoreQuery(t *testing.T) {
	Convey("Given a populated store", t, func() {
		store := NewStore()
		now := time.Now()

		store.Append([]QueryMetricSample{
			sampleAt("heavy", 10, 9000, now),
			sampleAt("chatty", 500, 1000, now),
			sampleAt("rare", 2, 10, now),
		}, 0)

		Convey("When filtering by minimum calls", func() {
			matched, total := store.Query(Filter{MinCalls: 5})

			So(total, ShouldEqual, 2)
			So(matched, ShouldHaveLength, 2)
		})

		Convey("When sorting by calls", func() {
			matched, _ := store.Query(Filter{SortBy: "calls"})
			So(matched[0].Fingerprint, ShouldEqual, "chatty")
		})

		Convey("When sorting by mean time", func() {
			matched, _ := store.Query(Filter{SortBy: "mean_time"})
			So(matched[0].Fingerprint, ShouldEqual, "heavy")
		})

		Convey("When paginating", func() {
			matched, total := store.Query(Filter{Offset: 1, Limit: 1})

			So(total, ShouldEqual, 3)
			So(matched, ShouldHaveLength, 1)
			So(matched[0].Fingerprint, ShouldEqual, "chatty")
		})

		Convey("When the offset is past the end", func() {
			matched, total := store.Query(Filter{Offset: 10})

			So(total, ShouldEqual, 3)
			So(matched, ShouldBeEmpty)
		})
	})
}
