package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

/*
Store holds the rolling window of metric samples, aggregated per
fingerprint. It is constructed explicitly and injected into each stage;
reads are concurrent, writes are single-batch atomic.
*/
type Store struct {
	mu             sync.RWMutex
	window         time.Duration
	samples        map[string][]QueryMetricSample
	representative map[string]string
	noise          int64
	lastUpdated    time.Time
}

type StoreOptionFn func(*Store)

/*
NewStore creates a metrics store with the given options.
*/
func NewStore(opts ...StoreOptionFn) *Store {
	store := &Store{
		window:         15 * time.Minute,
		samples:        make(map[string][]QueryMetricSample),
		representative: make(map[string]string),
	}

	for _, fn := range opts {
		fn(store)
	}

	return store
}

/*
WithWindow sets the rolling window samples are retained for.
*/
func WithWindow(window time.Duration) StoreOptionFn {
	return func(s *Store) {
		s.window = window
	}
}

/*
Append adds one poll cycle's batch of samples, pruning anything that has
fallen out of the rolling window. The first text seen for a fingerprint is
kept as its representative.
*/
func (s *Store) Append(batch []QueryMetricSample, noise int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.window)

	for _, sample := range batch {
		if _, ok := s.representative[sample.Fingerprint]; !ok {
			s.representative[sample.Fingerprint] = sample.RepresentativeText
		}
		s.samples[sample.Fingerprint] = append(s.samples[sample.Fingerprint], sample)
	}

	for fp, list := range s.samples {
		kept := list[:0]
		for _, sample := range list {
			if sample.CapturedAt.After(cutoff) {
				kept = append(kept, sample)
			}
		}
		if len(kept) == 0 {
			delete(s.samples, fp)
			delete(s.representative, fp)
			continue
		}
		s.samples[fp] = kept
	}

	s.noise += noise
	s.lastUpdated = now
}

/*
aggregate merges a fingerprint's windowed samples into one sample.
Caller must hold at least a read lock.
*/
func (s *Store) aggregate(fp string) QueryMetricSample {
	list := s.samples[fp]
	agg := QueryMetricSample{
		Fingerprint:        fp,
		RepresentativeText: s.representative[fp],
	}
	for i, sample := range list {
		agg.Calls += sample.Calls
		agg.TotalTime += sample.TotalTime
		agg.Rows += sample.Rows
		agg.SharedBlksHit += sample.SharedBlksHit
		agg.SharedBlksRead += sample.SharedBlksRead
		agg.SharedBlksWritten += sample.SharedBlksWritten
		agg.BlkReadTime += sample.BlkReadTime
		if i == 0 || sample.MinTime < agg.MinTime {
			agg.MinTime = sample.MinTime
		}
		if sample.MaxTime > agg.MaxTime {
			agg.MaxTime = sample.MaxTime
		}
		if sample.CapturedAt.After(agg.CapturedAt) {
			agg.CapturedAt = sample.CapturedAt
		}
	}
	if agg.Calls > 0 {
		agg.MeanTime = agg.TotalTime / float64(agg.Calls)
	}
	return agg
}

/*
Aggregated returns one merged sample per fingerprint in the current window,
with time percentages and performance scores recomputed over the window
total.
*/
func (s *Store) Aggregated() []QueryMetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalTime float64
	merged := make([]QueryMetricSample, 0, len(s.samples))
	for fp := range s.samples {
		agg := s.aggregate(fp)
		totalTime += agg.TotalTime
		merged = append(merged, agg)
	}

	for i := range merged {
		if totalTime > 0 {
			merged[i].TimePercentage = merged[i].TotalTime / totalTime * 100
		}
		merged[i].PerformanceScore = scoreSample(merged[i])
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TotalTime > merged[j].TotalTime
	})

	return merged
}

/*
TopByTotalTime returns the n most expensive statement shapes in the window.
*/
func (s *Store) TopByTotalTime(n int) []QueryMetricSample {
	merged := s.Aggregated()
	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	return merged
}

// Filter narrows and orders a metrics query.
type Filter struct {
	MinCalls    int64
	MinMeanTime float64
	SortBy      string // total_time, mean_time, calls
	Offset      int
	Limit       int
}

/*
Query returns the samples matching the filter, sorted and paginated, plus
the total match count before pagination.
*/
func (s *Store) Query(filter Filter) ([]QueryMetricSample, int) {
	merged := s.Aggregated()

	matched := merged[:0:0]
	for _, sample := range merged {
		if sample.Calls < filter.MinCalls {
			continue
		}
		if sample.MeanTime < filter.MinMeanTime {
			continue
		}
		matched = append(matched, sample)
	}

	switch strings.ToLower(filter.SortBy) {
	case "mean_time":
		sort.Slice(matched, func(i, j int) bool { return matched[i].MeanTime > matched[j].MeanTime })
	case "calls":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Calls > matched[j].Calls })
	default:
		// Already sorted by total_time.
	}

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total
}

/*
Summary aggregates the current window into headline numbers.
*/
func (s *Store) Summary(topN int) Summary {
	merged := s.Aggregated()

	s.mu.RLock()
	noise := s.noise
	updated := s.lastUpdated
	s.mu.RUnlock()

	summary := Summary{
		TotalQueries:    len(merged),
		NoiseStatements: noise,
		LastUpdated:     updated,
	}

	for i := range merged {
		summary.TotalExecutionTime += merged[i].TotalTime
		if summary.SlowestQuery == nil || merged[i].MeanTime > summary.SlowestQuery.MeanTime {
			summary.SlowestQuery = &merged[i]
		}
		if summary.MostCalledQuery == nil || merged[i].Calls > summary.MostCalledQuery.Calls {
			summary.MostCalledQuery = &merged[i]
		}
	}
	if len(merged) > 0 {
		summary.TotalExecutionTime = round2(summary.TotalExecutionTime)
		summary.AverageQueryTime = summary.TotalExecutionTime / float64(len(merged))
	}

	top := merged
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	summary.TopQueries = top

	return summary
}

/*
Representative returns the first-seen text for a fingerprint.
*/
func (s *Store) Representative(fp string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.representative[fp]
	return text, ok
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
