package analysis

/*
ScoreInput carries the aggregated metrics a performance score is computed
from. All times are milliseconds.
*/
type ScoreInput struct {
	MeanTime       float64
	Calls          int64
	TimePercentage float64
	SharedBlksHit  int64
	SharedBlksRead int64
	Rows           int64
}

// blockSize is the PostgreSQL page size used for the row-efficiency bonus.
const blockSize = 8192

/*
PerformanceScore computes a unified 0-100 score for a statement shape,
higher is better. It combines a latency penalty beyond a baseline, a
frequency penalty, a penalty for the statement's share of total database
time, a cache-hit penalty below target, and a small bonus for efficient row
return per block read.
*/
func PerformanceScore(in ScoreInput) int {
	score := 100.0

	if in.MeanTime > 10 {
		score -= min(40, (in.MeanTime-10)/2)
	}

	if in.Calls > 1000 {
		score -= 20
	} else if in.Calls > 100 {
		score -= 10
	}

	if in.TimePercentage > 10 {
		score -= min(20, (in.TimePercentage-10)*0.5)
	}

	totalBlocks := in.SharedBlksHit + in.SharedBlksRead
	cacheHit := 100.0
	if totalBlocks > 0 {
		cacheHit = float64(in.SharedBlksHit) / float64(totalBlocks) * 100
	}
	if cacheHit < 95 {
		score -= (95 - cacheHit) * 0.5
	}

	if in.Rows > 0 && in.SharedBlksRead > 0 {
		rowEfficiency := min(100, float64(in.Rows)/(float64(in.SharedBlksRead)*blockSize/100)*100)
		if rowEfficiency > 80 {
			score += min(10, (rowEfficiency-80)*0.2)
		}
	}

	return int(max(0, min(100, score)))
}
