package sandbox

import "time"

// Outcome is the terminal state of one benchmark attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
)

/*
BenchmarkResult records one validation attempt against the sandbox. It is
immutable; repeated attempts for the same recommendation each produce their
own result. Latencies are milliseconds.
*/
type BenchmarkResult struct {
	RecommendationID  string    `json:"recommendation_id"`
	BaselineLatency   float64   `json:"baseline_latency"`
	OptimizedLatency  float64   `json:"optimized_latency"`
	ImprovementPct    float64   `json:"improvement_pct"`
	Outcome           Outcome   `json:"outcome"`
	Error             string    `json:"error,omitempty"`
	RollbackAttempted bool      `json:"rollback_attempted"`
	RollbackError     string    `json:"rollback_error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

/*
Succeeded reports whether the benchmark completed and measured an
improvement.
*/
func (r *BenchmarkResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
