package storage

import (
	"context"
	"time"

	"github.com/optischema/optischema/recommend"
	"github.com/optischema/optischema/sandbox"
	"github.com/optischema/optischema/tracker"
)

/*
TuningRecord is the durable record of one recommendation's journey: the
recommendation itself, the benchmark that validated it, and where its
lifecycle ended up.
*/
type TuningRecord struct {
	ID             string                    `json:"id"`
	Timestamp      time.Time                 `json:"timestamp"`
	Fingerprint    string                    `json:"fingerprint"`
	Recommendation *recommend.Recommendation `json:"recommendation"`
	Benchmark      *sandbox.BenchmarkResult  `json:"benchmark,omitempty"`
	Status         tracker.Status            `json:"status"`
}

/*
Storage defines the interface for persisting tuning records and the audit
trail. Implementations also serve as the tracker's archive sink.
*/
type Storage interface {
	// SaveTuningRecord saves a tuning record
	SaveTuningRecord(ctx context.Context, record *TuningRecord) error

	// GetTuningRecord retrieves a tuning record by ID
	GetTuningRecord(ctx context.Context, id string, fingerprint ...string) (*TuningRecord, error)

	// ListTuningRecords lists all tuning records, newest first
	ListTuningRecords(ctx context.Context) ([]*TuningRecord, error)

	// ListTuningRecordsByFingerprint lists records for one statement shape
	ListTuningRecordsByFingerprint(ctx context.Context, fingerprint string) ([]*TuningRecord, error)

	// GetLatestTuningRecord gets the most recent tuning record
	GetLatestTuningRecord(ctx context.Context) (*TuningRecord, error)

	// SaveAuditEntry archives one audit log entry (tracker.Archive)
	SaveAuditEntry(ctx context.Context, entry *tracker.AuditLogEntry) error
}
