package metrics

import "time"

/*
StatementStats is one cumulative row of the statement-statistics view
(pg_stat_statements). All counters grow monotonically until the view is
reset; times are milliseconds.
*/
type StatementStats struct {
	QueryText         string  `json:"query_text"`
	Calls             int64   `json:"calls"`
	TotalTime         float64 `json:"total_time"`
	MeanTime          float64 `json:"mean_time"`
	MinTime           float64 `json:"min_time"`
	MaxTime           float64 `json:"max_time"`
	Rows              int64   `json:"rows"`
	SharedBlksHit     int64   `json:"shared_blks_hit"`
	SharedBlksRead    int64   `json:"shared_blks_read"`
	SharedBlksWritten int64   `json:"shared_blks_written"`
	BlkReadTime       float64 `json:"blk_read_time"`
}

/*
QueryMetricSample is the windowed delta for one statement shape over one
poll cycle. Counters are the growth since the previous cycle, not the raw
cumulative values, so a statement that was hot before the window started
does not dominate forever.
*/
type QueryMetricSample struct {
	Fingerprint        string    `json:"fingerprint"`
	RepresentativeText string    `json:"representative_text"`
	Calls              int64     `json:"calls"`
	TotalTime          float64   `json:"total_time"`
	MeanTime           float64   `json:"mean_time"`
	MinTime            float64   `json:"min_time"`
	MaxTime            float64   `json:"max_time"`
	Rows               int64     `json:"rows"`
	SharedBlksHit      int64     `json:"shared_blks_hit"`
	SharedBlksRead     int64     `json:"shared_blks_read"`
	SharedBlksWritten  int64     `json:"shared_blks_written"`
	BlkReadTime        float64   `json:"blk_read_time"`
	TimePercentage     float64   `json:"time_percentage"`
	PerformanceScore   int       `json:"performance_score"`
	CapturedAt         time.Time `json:"captured_at"`
}

/*
Summary aggregates the current window into the headline numbers consumed by
collaborators.
*/
type Summary struct {
	TotalQueries       int                 `json:"total_queries"`
	TotalExecutionTime float64             `json:"total_execution_time"`
	AverageQueryTime   float64             `json:"average_query_time"`
	SlowestQuery       *QueryMetricSample  `json:"slowest_query,omitempty"`
	MostCalledQuery    *QueryMetricSample  `json:"most_called_query,omitempty"`
	TopQueries         []QueryMetricSample `json:"top_queries"`
	NoiseStatements    int64               `json:"noise_statements"`
	LastUpdated        time.Time           `json:"last_updated"`
}
