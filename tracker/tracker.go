package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/recommend"
)

/*
Tracker owns the lifecycle of every recommendation: current status, legal
transitions, and the append-only audit trail. All mutation goes through
Transition so an illegal move can never happen silently.
*/
type Tracker struct {
	mu      sync.RWMutex
	recs    map[string]*recommend.Recommendation
	status  map[string]Status
	log     []AuditLogEntry
	archive Archive
}

type TrackerOptionFn func(*Tracker)

/*
NewTracker creates a tracker with the given options.
*/
func NewTracker(opts ...TrackerOptionFn) *Tracker {
	tracker := &Tracker{
		recs:   make(map[string]*recommend.Recommendation),
		status: make(map[string]Status),
	}

	for _, fn := range opts {
		fn(tracker)
	}

	return tracker
}

/*
WithArchive sets the durable sink audit entries are forwarded to.
*/
func WithArchive(archive Archive) TrackerOptionFn {
	return func(t *Tracker) {
		t.archive = archive
	}
}

// TransitionOption annotates a transition's audit entry.
type TransitionOption func(*AuditLogEntry)

/*
WithActor records who initiated the transition.
*/
func WithActor(actor string) TransitionOption {
	return func(e *AuditLogEntry) {
		e.Actor = actor
	}
}

/*
WithNote attaches a free-form note to the audit entry.
*/
func WithNote(note string) TransitionOption {
	return func(e *AuditLogEntry) {
		e.Note = note
	}
}

/*
WithLatency attaches before/after latency measurements, used on apply and
rollback transitions.
*/
func WithLatency(baseline, optimized, improvementPct float64) TransitionOption {
	return func(e *AuditLogEntry) {
		e.Latency = &LatencySnapshot{
			BaselineLatency:  baseline,
			OptimizedLatency: optimized,
			ImprovementPct:   improvementPct,
		}
	}
}

/*
Track registers a new recommendation as proposed and writes the initial
audit entry. Tracking the same recommendation twice is an error.
*/
func (t *Tracker) Track(ctx context.Context, rec *recommend.Recommendation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.status[rec.ID]; exists {
		return fmt.Errorf("recommendation %s is already tracked", rec.ID)
	}

	t.recs[rec.ID] = rec
	t.status[rec.ID] = StatusProposed
	t.append(ctx, AuditLogEntry{
		RecommendationID: rec.ID,
		Fingerprint:      rec.Fingerprint,
		FromStatus:       "",
		ToStatus:         StatusProposed,
	})

	logger.Info("Tracking recommendation",
		"id", rec.ID,
		"fingerprint", rec.Fingerprint,
		"type", rec.Kind)
	return nil
}

/*
Transition moves a recommendation to a new status, enforcing the legality
matrix, and appends the audit entry.
*/
func (t *Tracker) Transition(ctx context.Context, id string, to Status, opts ...TransitionOption) error {
	if !ValidStatus(to) {
		return fmt.Errorf("unknown status %q", to)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	from, exists := t.status[id]
	if !exists {
		return fmt.Errorf("recommendation %s is not tracked", id)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal transition %s -> %s for recommendation %s", from, to, id)
	}

	entry := AuditLogEntry{
		RecommendationID: id,
		Fingerprint:      t.recs[id].Fingerprint,
		FromStatus:       from,
		ToStatus:         to,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	t.status[id] = to
	t.append(ctx, entry)

	logger.Info("Recommendation transitioned",
		"id", id,
		"from", from,
		"to", to)
	return nil
}

// append finalizes and stores an audit entry. Caller holds the write lock.
func (t *Tracker) append(ctx context.Context, entry AuditLogEntry) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	t.log = append(t.log, entry)

	if t.archive != nil {
		if err := t.archive.SaveAuditEntry(ctx, &entry); err != nil {
			logger.Error("Failed to archive audit entry",
				"recommendation", entry.RecommendationID,
				"error", err)
		}
	}
}

/*
Status returns the current lifecycle state of a recommendation.
*/
func (t *Tracker) Status(id string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.status[id]
	return status, ok
}

/*
Get returns a tracked recommendation by id.
*/
func (t *Tracker) Get(id string) (*recommend.Recommendation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.recs[id]
	return rec, ok
}

/*
ByStatus returns all recommendations currently in the given status.
*/
func (t *Tracker) ByStatus(status Status) []*recommend.Recommendation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*recommend.Recommendation
	for id, s := range t.status {
		if s == status {
			out = append(out, t.recs[id])
		}
	}
	return out
}

/*
Tracked reports whether a fingerprint already has a live (non-terminal)
recommendation, so the pipeline does not propose duplicates.
*/
func (t *Tracker) Tracked(fingerprint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for id, rec := range t.recs {
		if rec.Fingerprint == fingerprint && !t.status[id].Terminal() {
			return true
		}
	}
	return false
}

/*
Log returns a copy of the audit trail in append order.
*/
func (t *Tracker) Log() []AuditLogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]AuditLogEntry, len(t.log))
	copy(out, t.log)
	return out
}
