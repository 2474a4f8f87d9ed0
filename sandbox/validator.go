package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/recommend"
)

/*
Validator benchmarks recommendations against sandbox instances. One
benchmark measures a median baseline latency, applies the fix, re-measures,
and always restores the sandbox afterwards, whatever happened in between.
*/
type Validator struct {
	pool    *Pool
	runs    int
	timeout time.Duration
}

type ValidatorOptionFn func(*Validator)

/*
NewValidator creates a validator with the given options.
*/
func NewValidator(opts ...ValidatorOptionFn) *Validator {
	validator := &Validator{
		runs:    5,
		timeout: 60 * time.Second,
	}

	for _, fn := range opts {
		fn(validator)
	}

	return validator
}

/*
WithPool sets the sandbox instance pool.
*/
func WithPool(pool *Pool) ValidatorOptionFn {
	return func(v *Validator) {
		v.pool = pool
	}
}

/*
WithRuns sets how many timing repetitions each measurement takes the median
of.
*/
func WithRuns(n int) ValidatorOptionFn {
	return func(v *Validator) {
		if n > 0 {
			v.runs = n
		}
	}
}

/*
WithTimeout bounds one full benchmark attempt.
*/
func WithTimeout(timeout time.Duration) ValidatorOptionFn {
	return func(v *Validator) {
		v.timeout = timeout
	}
}

/*
Benchmark validates one recommendation in the sandbox and returns an
immutable result. The outcome is success, failed, or timed_out; an error is
returned only when no benchmark could be attempted at all.

For index and config recommendations the fix is applied and rolled back
around the optimized measurement. Rewrite recommendations never change
sandbox state: the rewritten statement is timed directly against the
original.
*/
func (v *Validator) Benchmark(ctx context.Context, rec *recommend.Recommendation) (*BenchmarkResult, error) {
	if rec.Kind != recommend.KindRewrite && !rec.Reversible() {
		return nil, recommend.NewRecommendError(recommend.ErrorTypeValidation,
			"recommendation has no deterministic rollback and cannot be benchmarked", nil).
			WithFingerprint(rec.Fingerprint).
			WithSQL(rec.SQLFix)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	instance, err := v.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Release(instance)

	instance.lock()
	defer instance.unlock()

	result := &BenchmarkResult{
		RecommendationID: rec.ID,
		CreatedAt:        time.Now().UTC(),
	}

	if err := v.run(ctx, instance, rec, result); err != nil {
		result.Outcome = OutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			result.Outcome = OutcomeTimedOut
		}
		result.Error = err.Error()
		logger.Warn("Benchmark did not complete",
			"recommendation", rec.ID,
			"outcome", result.Outcome,
			"error", err)
		return result, nil
	}

	result.Outcome = OutcomeSuccess
	logger.Info("Benchmark completed",
		"recommendation", rec.ID,
		"baseline_ms", result.BaselineLatency,
		"optimized_ms", result.OptimizedLatency,
		"improvement_pct", result.ImprovementPct)

	return result, nil
}

func (v *Validator) run(ctx context.Context, instance *Instance, rec *recommend.Recommendation, result *BenchmarkResult) error {
	baseline, err := v.measure(ctx, instance, rec.QueryText)
	if err != nil {
		return fmt.Errorf("baseline measurement failed: %w", err)
	}
	result.BaselineLatency = baseline

	var optimized float64
	if rec.Kind == recommend.KindRewrite {
		optimized, err = v.measure(ctx, instance, rec.SQLFix)
		if err != nil {
			return fmt.Errorf("rewrite measurement failed: %w", err)
		}
	} else {
		optimized, err = v.applyAndMeasure(ctx, instance, rec, result)
		if err != nil {
			return err
		}
	}
	result.OptimizedLatency = optimized

	if baseline > 0 {
		result.ImprovementPct = (baseline - optimized) / baseline * 100
	}
	return nil
}

// applyAndMeasure applies the fix, measures, and restores the sandbox. The
// rollback defer is installed before the apply: a multi-statement fix can
// fail partway and still leave state behind, so the restore is attempted
// even when applying the fix errors. It runs on a fresh context in case the
// benchmark's own deadline is gone.
func (v *Validator) applyAndMeasure(ctx context.Context, instance *Instance, rec *recommend.Recommendation, result *BenchmarkResult) (optimized float64, err error) {
	defer func() {
		if rec.RollbackSQL == "" {
			return
		}
		result.RollbackAttempted = true

		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if rollbackErr := instance.Exec(rollbackCtx, rec.RollbackSQL); rollbackErr != nil {
			result.RollbackError = rollbackErr.Error()
			logger.Error("Sandbox rollback failed",
				"recommendation", rec.ID,
				"rollback_sql", rec.RollbackSQL,
				"error", rollbackErr)
		}
	}()

	if err := instance.Exec(ctx, rec.SQLFix); err != nil {
		return 0, fmt.Errorf("failed to apply fix: %w", err)
	}

	optimized, err = v.measure(ctx, instance, rec.QueryText)
	if err != nil {
		return 0, fmt.Errorf("optimized measurement failed: %w", err)
	}
	return optimized, nil
}

// measure times the statement v.runs times and returns the median, damping
// per-run noise.
func (v *Validator) measure(ctx context.Context, instance *Instance, sql string) (float64, error) {
	latencies := make([]float64, 0, v.runs)
	for i := 0; i < v.runs; i++ {
		latency, err := instance.Time(ctx, sql)
		if err != nil {
			return 0, err
		}
		latencies = append(latencies, latency)
	}
	return median(latencies), nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}
