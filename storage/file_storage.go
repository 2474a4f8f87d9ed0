package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/tracker"
)

// auditDirName is the subdirectory audit entries are archived under.
const auditDirName = "audit-log"

/*
FileStorage implements the Storage interface using the local filesystem.
Tuning records are JSON files grouped per statement fingerprint; audit
entries land in their own subdirectory.
*/
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

/*
NewFileStorage creates a new file storage instance.
It initializes the storage directory if it doesn't exist.
*/
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStorage{
		basePath: basePath,
	}, nil
}

/*
SaveTuningRecord saves a tuning record to a file.
It generates a unique ID and timestamp if not provided.
*/
func (fs *FileStorage) SaveTuningRecord(ctx context.Context, record *TuningRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Fingerprint == "" && record.Recommendation != nil {
		record.Fingerprint = record.Recommendation.Fingerprint
	}

	fpDir := filepath.Join(fs.basePath, record.Fingerprint)
	if err := os.MkdirAll(fpDir, 0755); err != nil {
		return fmt.Errorf("failed to create fingerprint directory: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal tuning record: %w", err)
	}

	filePath := filepath.Join(fpDir, record.ID+".json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tuning record: %w", err)
	}

	logger.Info("Saved tuning record",
		"id", record.ID,
		"fingerprint", record.Fingerprint,
		"status", record.Status)

	return nil
}

/*
GetTuningRecord retrieves a tuning record by ID. A fingerprint narrows the
search to one directory; without it every fingerprint directory is checked.
*/
func (fs *FileStorage) GetTuningRecord(ctx context.Context, id string, fingerprint ...string) (*TuningRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if len(fingerprint) > 0 && fingerprint[0] != "" {
		filePath := filepath.Join(fs.basePath, fingerprint[0], id+".json")
		return fs.readRecordFromFile(filePath)
	}

	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != auditDirName {
			filePath := filepath.Join(fs.basePath, entry.Name(), id+".json")
			if record, err := fs.readRecordFromFile(filePath); err == nil {
				return record, nil
			}
		}
	}

	return nil, fmt.Errorf("tuning record not found: %s", id)
}

func (fs *FileStorage) readRecordFromFile(filePath string) (*TuningRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var record TuningRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

/*
ListTuningRecords lists all tuning records across all fingerprints, sorted
by timestamp (newest first).
*/
func (fs *FileStorage) ListTuningRecords(ctx context.Context) ([]*TuningRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var records []*TuningRecord

	fpDirs, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	for _, fpDir := range fpDirs {
		if !fpDir.IsDir() || fpDir.Name() == auditDirName {
			continue
		}

		dirPath := filepath.Join(fs.basePath, fpDir.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			// Skip directories we can't read
			continue
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}

			record, err := fs.readRecordFromFile(filepath.Join(dirPath, file.Name()))
			if err != nil {
				// Skip files we can't read
				continue
			}
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) == 0 {
		return []*TuningRecord{}, nil
	}

	return records, nil
}

/*
ListTuningRecordsByFingerprint lists all tuning records for one statement
shape, sorted by timestamp (newest first).
*/
func (fs *FileStorage) ListTuningRecordsByFingerprint(ctx context.Context, fingerprint string) ([]*TuningRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var records []*TuningRecord

	dirPath := filepath.Join(fs.basePath, fingerprint)
	files, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*TuningRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read fingerprint directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		record, err := fs.readRecordFromFile(filepath.Join(dirPath, file.Name()))
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) == 0 {
		return []*TuningRecord{}, nil
	}

	return records, nil
}

/*
GetLatestTuningRecord retrieves the most recent tuning record.
*/
func (fs *FileStorage) GetLatestTuningRecord(ctx context.Context) (*TuningRecord, error) {
	records, err := fs.ListTuningRecords(ctx)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no tuning records found")
	}

	return records[0], nil
}

/*
SaveAuditEntry archives one audit entry as its own file, implementing the
tracker's archive sink. Entries are never overwritten.
*/
func (fs *FileStorage) SaveAuditEntry(ctx context.Context, entry *tracker.AuditLogEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	auditDir := filepath.Join(fs.basePath, auditDirName)
	if err := os.MkdirAll(auditDir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	filePath := filepath.Join(auditDir, entry.ID+".json")
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("audit entry %s already archived", entry.ID)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}
