package recommend

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/optischema/optischema/ai"
	"github.com/optischema/optischema/analysis"
)

const (
	confidenceBase            = 50
	bottleneckConfidenceBoost = 20
	lowScoreImprovementCutoff = 50
)

// filterColumnRe extracts the first column reference from an EXPLAIN filter
// expression such as "(status = 'active'::text)".
var filterColumnRe = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|<>|<=|>=|<|>|~~|!~~|IS\b|IN\b)`)

/*
scoreConfidence computes the base confidence for a recommendation from the
analysis. Worse statements score higher because the fix has more headroom;
a classified bottleneck adds a fixed boost.
*/
func scoreConfidence(a *analysis.PlanAnalysis) int {
	score := confidenceBase
	score += (100 - a.PerformanceScore) / 2

	switch a.Bottleneck {
	case analysis.BottleneckSeqScan, analysis.BottleneckMissingIndex, analysis.BottleneckSortSpill:
		score += bottleneckConfidenceBoost
	}

	return max(0, min(100, score))
}

/*
estimateImprovement predicts the percent improvement from fixing the
dominant bottleneck.
*/
func estimateImprovement(a *analysis.PlanAnalysis) float64 {
	switch a.Bottleneck {
	case analysis.BottleneckSeqScan:
		return 50
	case analysis.BottleneckMissingIndex:
		return 40
	case analysis.BottleneckSortSpill:
		return 20
	}
	if a.PerformanceScore < lowScoreImprovementCutoff {
		return 10
	}
	return 5
}

// kindFor picks the recommendation kind from the heuristic classification,
// independent of whatever the provider suggests.
func kindFor(a *analysis.PlanAnalysis) Kind {
	switch a.Bottleneck {
	case analysis.BottleneckSeqScan, analysis.BottleneckMissingIndex:
		return KindIndex
	case analysis.BottleneckSortSpill, analysis.BottleneckLowCacheHit:
		return KindConfig
	default:
		return KindRewrite
	}
}

/*
heuristicSuggestion builds the template-based fallback suggestion used when
no provider is configured or the provider fails. It mirrors the structured
output a provider would return so the rest of the generator does not care
where the suggestion came from.
*/
func heuristicSuggestion(a *analysis.PlanAnalysis) *ai.Suggestion {
	suggestion := &ai.Suggestion{
		Kind:                    string(kindFor(a)),
		EstimatedImprovementPct: estimateImprovement(a),
		Confidence:              scoreConfidence(a),
		Risk:                    string(RiskLow),
		Rationale:               a.BottleneckDetail,
	}

	switch a.Bottleneck {
	case analysis.BottleneckSeqScan, analysis.BottleneckMissingIndex:
		suggestion.Summary = fmt.Sprintf("Add an index on %s to avoid the sequential scan", a.SeqScanRelation)
		if column := filterColumn(a.SeqScanFilter); column != "" && a.SeqScanRelation != "" {
			suggestion.SQLFix = fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)",
				a.SeqScanRelation, shortFingerprint(a.Fingerprint), a.SeqScanRelation, column)
		}
	case analysis.BottleneckSortSpill:
		suggestion.Summary = "Raise work_mem so the sort stays in memory"
		suggestion.SQLFix = "ALTER SYSTEM SET work_mem = '64MB'"
		suggestion.Risk = string(RiskMedium)
		suggestion.Caveats = []string{"work_mem is allocated per sort node per connection"}
	case analysis.BottleneckLowCacheHit:
		suggestion.Summary = "Buffer cache hit ratio is below target; review shared_buffers sizing"
		suggestion.Risk = string(RiskMedium)
	case analysis.BottleneckNestedLoop:
		suggestion.Summary = "Row estimates diverge badly; refresh planner statistics or restructure the join"
	default:
		suggestion.Summary = "No dominant plan bottleneck; review statement-level issues"
	}

	if suggestion.SQLFix == "" && len(a.StatementIssues) > 0 {
		issue := a.StatementIssues[0]
		suggestion.Summary = issue.Description
		suggestion.Rationale = issue.Recommendation
	}

	return suggestion
}

func filterColumn(filter string) string {
	m := filterColumnRe.FindStringSubmatch(filter)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}
