package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/optischema/optischema/analysis"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/metrics"
	"github.com/optischema/optischema/recommend"
	"github.com/optischema/optischema/sandbox"
	"github.com/optischema/optischema/storage"
	"github.com/optischema/optischema/tracker"
)

/*
Pipeline wires the stages together: the collector feeds the store, the
analyzer explains the worst offenders, the generator turns analyses into
recommendations, and the tracker owns their lifecycle. Poll and analysis
cycles run on independent intervals; a cycle that is still running when its
next tick arrives is skipped, never stacked.
*/
type Pipeline struct {
	collector *metrics.Collector
	store     *metrics.Store
	analyzer  *analysis.Analyzer
	generator *recommend.Generator
	validator *sandbox.Validator
	tracker   *tracker.Tracker
	archive   storage.Storage

	pollInterval     time.Duration
	analysisInterval time.Duration
	topN             int

	scheduler gocron.Scheduler
}

type PipelineOptionFn func(*Pipeline)

/*
New creates a pipeline with the given options.
*/
func New(opts ...PipelineOptionFn) *Pipeline {
	pipeline := &Pipeline{
		pollInterval:     30 * time.Second,
		analysisInterval: 60 * time.Second,
		topN:             10,
	}

	for _, fn := range opts {
		fn(pipeline)
	}

	return pipeline
}

func WithCollector(collector *metrics.Collector) PipelineOptionFn {
	return func(p *Pipeline) {
		p.collector = collector
	}
}

func WithStore(store *metrics.Store) PipelineOptionFn {
	return func(p *Pipeline) {
		p.store = store
	}
}

func WithAnalyzer(analyzer *analysis.Analyzer) PipelineOptionFn {
	return func(p *Pipeline) {
		p.analyzer = analyzer
	}
}

func WithGenerator(generator *recommend.Generator) PipelineOptionFn {
	return func(p *Pipeline) {
		p.generator = generator
	}
}

func WithValidator(validator *sandbox.Validator) PipelineOptionFn {
	return func(p *Pipeline) {
		p.validator = validator
	}
}

func WithTracker(t *tracker.Tracker) PipelineOptionFn {
	return func(p *Pipeline) {
		p.tracker = t
	}
}

func WithArchive(archive storage.Storage) PipelineOptionFn {
	return func(p *Pipeline) {
		p.archive = archive
	}
}

func WithPollInterval(interval time.Duration) PipelineOptionFn {
	return func(p *Pipeline) {
		p.pollInterval = interval
	}
}

func WithAnalysisInterval(interval time.Duration) PipelineOptionFn {
	return func(p *Pipeline) {
		p.analysisInterval = interval
	}
}

func WithTopN(n int) PipelineOptionFn {
	return func(p *Pipeline) {
		if n > 0 {
			p.topN = n
		}
	}
}

/*
Start schedules the poll and analysis cycles and returns once the scheduler
is running. Singleton mode reschedules a tick that fires while the previous
run is still busy instead of stacking it.
*/
func (p *Pipeline) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(p.pollInterval),
		gocron.NewTask(func() {
			if err := p.collector.Collect(ctx); err != nil {
				logger.Debug("Poll cycle ended early", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule poll job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(p.analysisInterval),
		gocron.NewTask(func() {
			p.AnalyzeCycle(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule analysis job: %w", err)
	}

	scheduler.Start()
	p.scheduler = scheduler

	logger.Info("Pipeline started",
		"poll_interval", p.pollInterval,
		"analysis_interval", p.analysisInterval,
		"top_n", p.topN)
	return nil
}

/*
Stop shuts the scheduler down and waits for running jobs to finish.
*/
func (p *Pipeline) Stop() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}

/*
AnalyzeCycle runs one analysis pass: take the top statement shapes by total
time, analyze their plans, and emit a recommendation for every shape that
does not already have a live one.
*/
func (p *Pipeline) AnalyzeCycle(ctx context.Context) {
	top := p.store.TopByTotalTime(p.topN)
	if len(top) == 0 {
		logger.Debug("Analysis cycle found no candidates")
		return
	}

	candidates := make([]analysis.Candidate, 0, len(top))
	for _, sample := range top {
		if p.tracker != nil && p.tracker.Tracked(sample.Fingerprint) {
			continue
		}
		candidates = append(candidates, analysis.Candidate{
			Fingerprint:    sample.Fingerprint,
			QueryText:      sample.RepresentativeText,
			Calls:          sample.Calls,
			MeanTime:       sample.MeanTime,
			TimePercentage: sample.TimePercentage,
			SharedBlksHit:  sample.SharedBlksHit,
			SharedBlksRead: sample.SharedBlksRead,
			Rows:           sample.Rows,
		})
	}
	if len(candidates) == 0 {
		return
	}

	results := p.analyzer.AnalyzeAll(ctx, candidates)

	for i := range results {
		rec := p.generator.Generate(ctx, &results[i])

		if p.tracker != nil {
			if err := p.tracker.Track(ctx, rec); err != nil {
				logger.Warn("Failed to track recommendation", "id", rec.ID, "error", err)
				continue
			}
		}

		p.persist(ctx, rec, nil, tracker.StatusProposed)
	}

	logger.Info("Analysis cycle completed",
		"candidates", len(candidates),
		"recommendations", len(results))
}

/*
Validate benchmarks a tracked recommendation in the sandbox and drives its
lifecycle: a successful benchmark transitions it to applied with the
measured latencies; a failed or timed-out one leaves it proposed. The
benchmark result is persisted either way.
*/
func (p *Pipeline) Validate(ctx context.Context, recommendationID string) (*sandbox.BenchmarkResult, error) {
	rec, ok := p.tracker.Get(recommendationID)
	if !ok {
		return nil, fmt.Errorf("recommendation %s is not tracked", recommendationID)
	}

	result, err := p.validator.Benchmark(ctx, rec)
	if err != nil {
		return nil, err
	}

	status := tracker.StatusProposed
	if result.Succeeded() {
		if err := p.tracker.Transition(ctx, rec.ID, tracker.StatusApplied,
			tracker.WithLatency(result.BaselineLatency, result.OptimizedLatency, result.ImprovementPct),
			tracker.WithNote("validated in sandbox"),
		); err != nil {
			return nil, err
		}
		status = tracker.StatusApplied
	}

	p.persist(ctx, rec, result, status)
	return result, nil
}

/*
Rollback reverts an applied recommendation in the sandbox and transitions it
to rolled_back.
*/
func (p *Pipeline) Rollback(ctx context.Context, recommendationID string) error {
	rec, ok := p.tracker.Get(recommendationID)
	if !ok {
		return fmt.Errorf("recommendation %s is not tracked", recommendationID)
	}
	if !rec.Reversible() {
		return recommend.NewRecommendError(recommend.ErrorTypeRollback,
			"recommendation has no deterministic rollback", nil).
			WithFingerprint(rec.Fingerprint)
	}

	if err := p.tracker.Transition(ctx, rec.ID, tracker.StatusRolledBack,
		tracker.WithNote("operator rollback")); err != nil {
		return err
	}

	p.persist(ctx, rec, nil, tracker.StatusRolledBack)
	return nil
}

// persist writes the durable tuning record; storage failures are logged and
// never fail the cycle.
func (p *Pipeline) persist(ctx context.Context, rec *recommend.Recommendation, benchmark *sandbox.BenchmarkResult, status tracker.Status) {
	if p.archive == nil {
		return
	}

	record := &storage.TuningRecord{
		ID:             rec.ID,
		Timestamp:      time.Now().UTC(),
		Fingerprint:    rec.Fingerprint,
		Recommendation: rec,
		Benchmark:      benchmark,
		Status:         status,
	}

	if err := p.archive.SaveTuningRecord(ctx, record); err != nil {
		logger.Error("Failed to persist tuning record", "id", rec.ID, "error", err)
	}
}
