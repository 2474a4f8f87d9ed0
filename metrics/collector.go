package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/optischema/optischema/analysis"
	"github.com/optischema/optischema/logger"
)

// ErrCycleInProgress is returned when a poll cycle is skipped because the
// previous cycle has not completed.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

/*
StatSource provides cumulative statement statistics. Implementations read
the database's statistics view; tests substitute fakes.
*/
type StatSource interface {
	Snapshot(ctx context.Context) ([]StatementStats, error)
}

/*
Collector samples the statement-statistics view on an interval and converts
cumulative counters into windowed deltas. A cycle is skipped entirely if the
previous one is still running; source failures are retried with backoff and
surfaced as degraded health rather than terminating the process.
*/
type Collector struct {
	source     StatSource
	store      *Store
	mu         sync.Mutex
	prev       map[string]StatementStats
	degraded   atomic.Bool
	maxRetries uint64
}

type CollectorOptionFn func(*Collector)

/*
NewCollector creates a collector with the given options.
*/
func NewCollector(opts ...CollectorOptionFn) *Collector {
	collector := &Collector{
		prev:       make(map[string]StatementStats),
		maxRetries: 3,
	}

	for _, fn := range opts {
		fn(collector)
	}

	return collector
}

/*
WithSource sets the statistics source for the collector.
*/
func WithSource(source StatSource) CollectorOptionFn {
	return func(c *Collector) {
		c.source = source
	}
}

/*
WithStore sets the metrics store the collector appends to.
*/
func WithStore(store *Store) CollectorOptionFn {
	return func(c *Collector) {
		c.store = store
	}
}

/*
WithMaxRetries sets how many times a failed snapshot is retried within one
cycle before the collector reports degraded health.
*/
func WithMaxRetries(n uint64) CollectorOptionFn {
	return func(c *Collector) {
		c.maxRetries = n
	}
}

/*
Healthy reports whether the last cycle reached the statistics source.
*/
func (c *Collector) Healthy() bool {
	return !c.degraded.Load()
}

/*
Collect runs one poll cycle: snapshot the statistics view, compute deltas
against the previous snapshot, drop noise, and append the batch to the
store. Returns ErrCycleInProgress when the previous cycle is still running.
*/
func (c *Collector) Collect(ctx context.Context) error {
	if !c.mu.TryLock() {
		logger.Warn("Skipping poll cycle, previous cycle still running")
		return ErrCycleInProgress
	}
	defer c.mu.Unlock()

	rows, err := c.snapshotWithRetry(ctx)
	if err != nil {
		c.degraded.Store(true)
		logger.Error("Statistics source unavailable", "error", err)
		return err
	}
	c.degraded.Store(false)

	batch, noise := c.delta(rows)
	if len(batch) == 0 && noise == 0 {
		logger.Debug("Poll cycle produced no new activity")
		return nil
	}

	c.store.Append(batch, noise)
	logger.Info("Collected metrics batch",
		"statements", len(batch),
		"noise", noise)
	return nil
}

func (c *Collector) snapshotWithRetry(ctx context.Context) ([]StatementStats, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)

	var rows []StatementStats
	operation := func() error {
		var err error
		rows, err = c.source.Snapshot(ctx)
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return rows, nil
}

/*
delta converts cumulative rows into per-cycle growth. A statistics reset
(counters going backwards) is treated as a fresh baseline. Noise statements
are counted but excluded from the batch.
*/
func (c *Collector) delta(rows []StatementStats) ([]QueryMetricSample, int64) {
	now := time.Now()
	next := make(map[string]StatementStats, len(rows))

	var (
		batch     []QueryMetricSample
		noise     int64
		totalTime float64
	)

	for _, row := range rows {
		if analysis.IsNoise(row.QueryText) {
			noise++
			continue
		}

		fp := analysis.Fingerprint(row.QueryText)

		// Rows for the same shape merge before the delta is taken.
		if existing, ok := next[fp]; ok {
			row = mergeCumulative(existing, row)
		}
		next[fp] = row

		prev, seen := c.prev[fp]
		if seen && row.Calls < prev.Calls {
			// Statistics view was reset; the full counters are the delta.
			seen = false
		}

		sample := QueryMetricSample{
			Fingerprint:        fp,
			RepresentativeText: row.QueryText,
			Calls:              row.Calls,
			TotalTime:          row.TotalTime,
			Rows:               row.Rows,
			SharedBlksHit:      row.SharedBlksHit,
			SharedBlksRead:     row.SharedBlksRead,
			SharedBlksWritten:  row.SharedBlksWritten,
			BlkReadTime:        row.BlkReadTime,
			MinTime:            row.MinTime,
			MaxTime:            row.MaxTime,
			CapturedAt:         now,
		}
		if seen {
			sample.Calls -= prev.Calls
			sample.TotalTime -= prev.TotalTime
			sample.Rows -= prev.Rows
			sample.SharedBlksHit -= prev.SharedBlksHit
			sample.SharedBlksRead -= prev.SharedBlksRead
			sample.SharedBlksWritten -= prev.SharedBlksWritten
			sample.BlkReadTime -= prev.BlkReadTime
		}
		if sample.Calls <= 0 {
			continue
		}
		sample.MeanTime = sample.TotalTime / float64(sample.Calls)

		totalTime += sample.TotalTime
		batch = append(batch, sample)
	}

	for i := range batch {
		if totalTime > 0 {
			batch[i].TimePercentage = batch[i].TotalTime / totalTime * 100
		}
		batch[i].PerformanceScore = scoreSample(batch[i])
	}

	c.prev = next
	return batch, noise
}

func mergeCumulative(a, b StatementStats) StatementStats {
	merged := a
	merged.Calls += b.Calls
	merged.TotalTime += b.TotalTime
	merged.Rows += b.Rows
	merged.SharedBlksHit += b.SharedBlksHit
	merged.SharedBlksRead += b.SharedBlksRead
	merged.SharedBlksWritten += b.SharedBlksWritten
	merged.BlkReadTime += b.BlkReadTime
	if b.MinTime < merged.MinTime {
		merged.MinTime = b.MinTime
	}
	if b.MaxTime > merged.MaxTime {
		merged.MaxTime = b.MaxTime
	}
	if merged.Calls > 0 {
		merged.MeanTime = merged.TotalTime / float64(merged.Calls)
	}
	return merged
}
