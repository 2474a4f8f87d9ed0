package metrics

import "github.com/optischema/optischema/analysis"

// scoreSample annotates an aggregated sample with its performance score.
func scoreSample(s QueryMetricSample) int {
	return analysis.PerformanceScore(analysis.ScoreInput{
		MeanTime:       s.MeanTime,
		Calls:          s.Calls,
		TimePercentage: s.TimePercentage,
		SharedBlksHit:  s.SharedBlksHit,
		SharedBlksRead: s.SharedBlksRead,
		Rows:           s.Rows,
	})
}
