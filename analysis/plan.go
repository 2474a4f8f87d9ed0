package analysis

import (
	"encoding/json"
	"fmt"
	"time"
)

// BottleneckType classifies the dominant performance problem of a plan.
type BottleneckType string

const (
	// BottleneckSeqScan is a sequential scan over a large relation.
	BottleneckSeqScan BottleneckType = "sequential_scan"
	// BottleneckMissingIndex is a sequential scan with a selective filter.
	BottleneckMissingIndex BottleneckType = "missing_index"
	// BottleneckNestedLoop is a nested-loop join whose row estimate is far off.
	BottleneckNestedLoop BottleneckType = "nested_loop_misestimate"
	// BottleneckSortSpill is a sort or hash spilling to temporary storage.
	BottleneckSortSpill BottleneckType = "sort_spill"
	// BottleneckLowCacheHit is a plan dominated by buffer reads over hits.
	BottleneckLowCacheHit BottleneckType = "low_cache_hit"
	// BottleneckGeneral is a slow plan with no single dominant cause.
	BottleneckGeneral BottleneckType = "general_performance"
)

// String implements the Stringer interface for BottleneckType
func (b BottleneckType) String() string {
	return string(b)
}

/*
PlanNode mirrors one node of a PostgreSQL EXPLAIN (FORMAT JSON) tree,
including the actual-execution fields produced by ANALYZE and the buffer
counters produced by BUFFERS.
*/
type PlanNode struct {
	NodeType            string     `json:"Node Type"`
	RelationName        string     `json:"Relation Name,omitempty"`
	IndexName           string     `json:"Index Name,omitempty"`
	Filter              string     `json:"Filter,omitempty"`
	JoinType            string     `json:"Join Type,omitempty"`
	SortKey             []string   `json:"Sort Key,omitempty"`
	SortMethod          string     `json:"Sort Method,omitempty"`
	TotalCost           float64    `json:"Total Cost"`
	PlanRows            int64      `json:"Plan Rows"`
	PlanWidth           int64      `json:"Plan Width"`
	ActualTotalTime     float64    `json:"Actual Total Time"`
	ActualRows          int64      `json:"Actual Rows"`
	ActualLoops         int64      `json:"Actual Loops"`
	RowsRemovedByFilter int64      `json:"Rows Removed by Filter,omitempty"`
	SharedHitBlocks     int64      `json:"Shared Hit Blocks"`
	SharedReadBlocks    int64      `json:"Shared Read Blocks"`
	TempReadBlocks      int64      `json:"Temp Read Blocks"`
	TempWrittenBlocks   int64      `json:"Temp Written Blocks"`
	Plans               []PlanNode `json:"Plans,omitempty"`
}

/*
Plan is the root of an execution plan with its top-level timing.
*/
type Plan struct {
	Root          PlanNode `json:"Plan"`
	PlanningTime  float64  `json:"Planning Time"`
	ExecutionTime float64  `json:"Execution Time"`
}

/*
TotalTime returns planning plus execution time in milliseconds.
*/
func (p *Plan) TotalTime() float64 {
	return p.PlanningTime + p.ExecutionTime
}

/*
ParsePlan decodes the JSON document returned by
EXPLAIN (FORMAT JSON, ANALYZE, BUFFERS). PostgreSQL wraps the plan in a
single-element array.
*/
func ParsePlan(raw []byte) (*Plan, error) {
	var wrapper []Plan
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		// Some drivers hand back the unwrapped object.
		var plan Plan
		if err2 := json.Unmarshal(raw, &plan); err2 == nil && plan.Root.NodeType != "" {
			return &plan, nil
		}
		return nil, fmt.Errorf("failed to parse execution plan: %w", err)
	}
	if len(wrapper) == 0 {
		return nil, fmt.Errorf("execution plan document is empty")
	}
	return &wrapper[0], nil
}

/*
PlanAnalysis is the per-fingerprint result of one analysis cycle. It is
always created whole and replaced whole, never partially updated.
*/
type PlanAnalysis struct {
	Fingerprint        string         `json:"fingerprint"`
	QueryText          string         `json:"query_text"`
	Plan               *Plan          `json:"plan,omitempty"`
	Bottleneck         BottleneckType `json:"bottleneck_type"`
	BottleneckDetail   string         `json:"bottleneck_detail,omitempty"`
	PerformanceScore   int            `json:"performance_score"`
	StatementIssues    []Issue        `json:"statement_issues,omitempty"`
	ComputedAt         time.Time      `json:"computed_at"`
	MeanTimeMillis     float64        `json:"mean_time_ms"`
	TimePercentage     float64        `json:"time_percentage"`
	FilterSelectivity  float64        `json:"filter_selectivity"`
	SeqScanRelation    string         `json:"seq_scan_relation,omitempty"`
	SeqScanFilter      string         `json:"seq_scan_filter,omitempty"`
	SpillSortKey       []string       `json:"spill_sort_key,omitempty"`
	EstimateDivergence float64        `json:"estimate_divergence,omitempty"`
}

const (
	largeScanRows       = 1000
	largeJoinRows       = 10000
	misestimateFactor   = 10.0
	selectiveFraction   = 0.05
	cacheHitTargetPct   = 90.0
	minBlocksForVerdict = 100
)

/*
ClassifyBottleneck walks a plan tree and picks the dominant bottleneck.
Priority follows impact: a selective sequential scan beats a plain one, a
misestimated nested loop beats a spill, a spill beats a cold cache.
*/
func ClassifyBottleneck(plan *Plan) (BottleneckType, string, *PlanNode) {
	if plan == nil {
		return BottleneckGeneral, "no execution plan available", nil
	}

	var (
		seqScan    *PlanNode
		selective  *PlanNode
		nestedLoop *PlanNode
		spill      *PlanNode
	)

	var walk func(n *PlanNode)
	walk = func(n *PlanNode) {
		switch n.NodeType {
		case "Seq Scan":
			rows := n.ActualRows + n.RowsRemovedByFilter
			if rows > largeScanRows {
				if seqScan == nil || rows > seqScan.ActualRows+seqScan.RowsRemovedByFilter {
					seqScan = n
				}
				if n.Filter != "" && rows > 0 &&
					float64(n.ActualRows)/float64(rows) < selectiveFraction {
					selective = n
				}
			}
		case "Nested Loop":
			if n.ActualRows > largeJoinRows && n.PlanRows > 0 &&
				float64(n.ActualRows)/float64(n.PlanRows) > misestimateFactor {
				nestedLoop = n
			}
		case "Sort", "Hash", "HashAggregate", "GroupAggregate":
			if n.TempWrittenBlocks > 0 || n.SortMethod == "external merge" || n.SortMethod == "external sort" {
				spill = n
			}
		}
		for i := range n.Plans {
			walk(&n.Plans[i])
		}
	}
	walk(&plan.Root)

	switch {
	case selective != nil:
		total := selective.ActualRows + selective.RowsRemovedByFilter
		return BottleneckMissingIndex,
			fmt.Sprintf("sequential scan on %s matches %d of %d rows with filter %s",
				selective.RelationName, selective.ActualRows, total, selective.Filter),
			selective
	case nestedLoop != nil:
		return BottleneckNestedLoop,
			fmt.Sprintf("nested loop produced %d rows against an estimate of %d",
				nestedLoop.ActualRows, nestedLoop.PlanRows),
			nestedLoop
	case spill != nil:
		return BottleneckSortSpill,
			fmt.Sprintf("%s wrote %d temp blocks", spill.NodeType, spill.TempWrittenBlocks),
			spill
	case seqScan != nil:
		return BottleneckSeqScan,
			fmt.Sprintf("sequential scan on %s returned %d rows",
				seqScan.RelationName, seqScan.ActualRows),
			seqScan
	}

	hit, read := sumBuffers(&plan.Root)
	if hit+read >= minBlocksForVerdict {
		ratio := float64(hit) / float64(hit+read) * 100
		if ratio < cacheHitTargetPct {
			return BottleneckLowCacheHit,
				fmt.Sprintf("buffer cache hit ratio %.1f%% below target %.0f%%", ratio, cacheHitTargetPct),
				nil
		}
	}

	return BottleneckGeneral, "no dominant bottleneck detected", nil
}

func sumBuffers(n *PlanNode) (hit, read int64) {
	hit = n.SharedHitBlocks
	read = n.SharedReadBlocks
	for i := range n.Plans {
		h, r := sumBuffers(&n.Plans[i])
		hit += h
		read += r
	}
	return hit, read
}
