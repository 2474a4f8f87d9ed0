package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/optischema/optischema/logger"
	"golang.org/x/sync/errgroup"
)

/*
PlanSource acquires an execution plan for a statement. Implementations must
not leave side effects behind; the database adapter runs the statement inside
a transaction that is always rolled back.
*/
type PlanSource interface {
	Explain(ctx context.Context, queryText string) (*Plan, error)
}

/*
Candidate is one statement shape selected for plan analysis, carrying the
aggregated metrics the score and confidence math need.
*/
type Candidate struct {
	Fingerprint    string
	QueryText      string
	Calls          int64
	MeanTime       float64
	TimePercentage float64
	SharedBlksHit  int64
	SharedBlksRead int64
	Rows           int64
}

/*
Analyzer turns candidate statements into plan analyses. Plan acquisition for
different candidates runs concurrently up to a configured limit; a failed
EXPLAIN degrades that candidate to text heuristics instead of failing the
cycle.
*/
type Analyzer struct {
	source      PlanSource
	parallelism int
}

type AnalyzerOptionFn func(*Analyzer)

/*
NewAnalyzer creates an analyzer with the given options.
*/
func NewAnalyzer(opts ...AnalyzerOptionFn) *Analyzer {
	analyzer := &Analyzer{
		parallelism: 4,
	}

	for _, fn := range opts {
		fn(analyzer)
	}

	return analyzer
}

/*
WithPlanSource sets where execution plans are acquired from.
*/
func WithPlanSource(source PlanSource) AnalyzerOptionFn {
	return func(a *Analyzer) {
		a.source = source
	}
}

/*
WithParallelism caps how many candidates are explained concurrently.
*/
func WithParallelism(n int) AnalyzerOptionFn {
	return func(a *Analyzer) {
		if n > 0 {
			a.parallelism = n
		}
	}
}

/*
Analyze produces the analysis for a single candidate. The returned value is
complete even when the plan could not be acquired.
*/
func (a *Analyzer) Analyze(ctx context.Context, candidate Candidate) PlanAnalysis {
	result := PlanAnalysis{
		Fingerprint:     candidate.Fingerprint,
		QueryText:       candidate.QueryText,
		StatementIssues: DetectIssues(candidate.QueryText),
		ComputedAt:      time.Now(),
		MeanTimeMillis:  candidate.MeanTime,
		TimePercentage:  candidate.TimePercentage,
		PerformanceScore: PerformanceScore(ScoreInput{
			MeanTime:       candidate.MeanTime,
			Calls:          candidate.Calls,
			TimePercentage: candidate.TimePercentage,
			SharedBlksHit:  candidate.SharedBlksHit,
			SharedBlksRead: candidate.SharedBlksRead,
			Rows:           candidate.Rows,
		}),
	}

	var plan *Plan
	if a.source != nil {
		var err error
		plan, err = a.source.Explain(ctx, candidate.QueryText)
		if err != nil {
			logger.Warn("Plan acquisition failed, falling back to text heuristics",
				"fingerprint", candidate.Fingerprint,
				"error", err)
		}
	}

	result.Plan = plan
	result.Bottleneck, result.BottleneckDetail, result.SeqScanRelation,
		result.SeqScanFilter, result.SpillSortKey,
		result.FilterSelectivity, result.EstimateDivergence = classifyDetail(plan)

	return result
}

func classifyDetail(plan *Plan) (BottleneckType, string, string, string, []string, float64, float64) {
	bottleneck, detail, node := ClassifyBottleneck(plan)

	var (
		relation    string
		filter      string
		sortKey     []string
		selectivity float64
		divergence  float64
	)

	if node != nil {
		relation = node.RelationName
		filter = node.Filter
		sortKey = node.SortKey

		if total := node.ActualRows + node.RowsRemovedByFilter; total > 0 {
			selectivity = float64(node.ActualRows) / float64(total)
		}
		if node.PlanRows > 0 {
			divergence = float64(node.ActualRows) / float64(node.PlanRows)
		}
	}

	return bottleneck, detail, relation, filter, sortKey, selectivity, divergence
}

/*
AnalyzeAll analyzes every candidate concurrently and returns the results
ordered by ascending performance score, worst offenders first. Individual
failures never abort the batch.
*/
func (a *Analyzer) AnalyzeAll(ctx context.Context, candidates []Candidate) []PlanAnalysis {
	results := make([]PlanAnalysis, len(candidates))

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.parallelism)

	for i, candidate := range candidates {
		group.Go(func() error {
			analysis := a.Analyze(groupCtx, candidate)
			mu.Lock()
			results[i] = analysis
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only orders the writes.
	_ = group.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PerformanceScore < results[j].PerformanceScore
	})

	return results
}
