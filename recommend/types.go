package recommend

import (
	"time"
)

// Kind classifies what a recommendation changes.
type Kind string

const (
	// KindIndex is a new or changed index.
	KindIndex Kind = "index"
	// KindRewrite is a rewritten statement.
	KindRewrite Kind = "rewrite"
	// KindConfig is a server configuration change.
	KindConfig Kind = "config"
)

// Risk is the qualitative risk of applying a recommendation.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Raise returns the next risk level up.
func (r Risk) Raise() Risk {
	switch r {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}

/*
Recommendation is one actionable optimization for a statement shape. It is
created once per fingerprint and diagnosis; only its lifecycle status
changes afterwards, everything else is immutable.
*/
type Recommendation struct {
	ID                      string    `json:"id"`
	Fingerprint             string    `json:"fingerprint"`
	QueryText               string    `json:"query_text"`
	Kind                    Kind      `json:"type"`
	Summary                 string    `json:"summary"`
	Rationale               string    `json:"rationale,omitempty"`
	SQLFix                  string    `json:"sql_fix,omitempty"`
	RollbackSQL             string    `json:"rollback_sql,omitempty"`
	EstimatedImprovementPct float64   `json:"estimated_improvement_pct"`
	Confidence              int       `json:"confidence_score"`
	Risk                    Risk      `json:"risk_level"`
	HeuristicOnly           bool      `json:"heuristic_only"`
	Provider                string    `json:"provider,omitempty"`
	Caveats                 []string  `json:"caveats,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

/*
Reversible reports whether a deterministic rollback exists. Non-reversible
recommendations are excluded from automatic application.
*/
func (r *Recommendation) Reversible() bool {
	return r.RollbackSQL != ""
}

/*
Impact returns the presentation band for the recommendation.
*/
func (r *Recommendation) Impact() string {
	return ImpactBand(r.EstimatedImprovementPct)
}
