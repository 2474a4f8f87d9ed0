package tracker

import (
	"context"
	"time"
)

/*
LatencySnapshot captures the measured latency around an apply or rollback,
so the audit trail shows what the change actually did.
*/
type LatencySnapshot struct {
	BaselineLatency  float64 `json:"baseline_latency"`
	OptimizedLatency float64 `json:"optimized_latency"`
	ImprovementPct   float64 `json:"improvement_pct"`
}

/*
AuditLogEntry is one immutable record of a lifecycle transition. The log is
append-only; entries are never updated or removed.
*/
type AuditLogEntry struct {
	ID               string           `json:"id"`
	RecommendationID string           `json:"recommendation_id"`
	Fingerprint      string           `json:"fingerprint"`
	FromStatus       Status           `json:"from_status"`
	ToStatus         Status           `json:"to_status"`
	Actor            string           `json:"actor,omitempty"`
	Note             string           `json:"note,omitempty"`
	Latency          *LatencySnapshot `json:"latency,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

/*
Archive receives audit entries for durable storage. The tracker keeps its
own in-memory log regardless; an archive failure is logged and never blocks
a transition.
*/
type Archive interface {
	SaveAuditEntry(ctx context.Context, entry *AuditLogEntry) error
}
