package analysis

import (
	"regexp"
	"strings"
)

// Issue is a statement-level problem found by text heuristics, independent
// of any execution plan.
type Issue struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

var (
	selectStarRe      = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	orderByRe         = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	limitRe           = regexp.MustCompile(`(?i)\bLIMIT\b`)
	leadingWildcardRe = regexp.MustCompile(`(?i)LIKE\s+'%`)
)

/*
DetectIssues runs cheap text heuristics over a statement and returns the
problems found. These feed rewrite recommendations when no plan-level
bottleneck dominates.
*/
func DetectIssues(queryText string) []Issue {
	var issues []Issue
	upper := strings.ToUpper(queryText)
	verb := LeadingVerb(queryText)

	if selectStarRe.MatchString(queryText) {
		issues = append(issues, Issue{
			Type:           "select_star",
			Severity:       "medium",
			Description:    "Query uses SELECT * which may retrieve unnecessary columns",
			Recommendation: "Specify only required columns in the SELECT clause",
		})
	}

	if (verb == "DELETE" || verb == "UPDATE") && !strings.Contains(upper, "WHERE") {
		issues = append(issues, Issue{
			Type:           "missing_where",
			Severity:       "high",
			Description:    "DELETE/UPDATE statement has no WHERE clause",
			Recommendation: "Add a WHERE clause to limit affected rows",
		})
	}

	if strings.Count(upper, "SELECT") > 1 {
		issues = append(issues, Issue{
			Type:           "multiple_selects",
			Severity:       "low",
			Description:    "Statement contains multiple SELECT clauses",
			Recommendation: "Consider using JOINs to reduce round trips",
		})
	}

	if orderByRe.MatchString(queryText) && !limitRe.MatchString(queryText) {
		issues = append(issues, Issue{
			Type:           "order_by_no_limit",
			Severity:       "low",
			Description:    "ORDER BY without LIMIT may sort large result sets",
			Recommendation: "Add a LIMIT clause to restrict result set size",
		})
	}

	if leadingWildcardRe.MatchString(queryText) {
		issues = append(issues, Issue{
			Type:           "leading_wildcard",
			Severity:       "medium",
			Description:    "LIKE pattern starts with a wildcard and cannot use a btree index",
			Recommendation: "Consider full-text search or restructuring the pattern",
		})
	}

	return issues
}
