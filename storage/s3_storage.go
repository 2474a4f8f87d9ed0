package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/tracker"
)

const (
	// DefaultRecordsPrefix is the default prefix for tuning records in S3
	DefaultRecordsPrefix = "tuning-records/"
	// DefaultAuditPrefix is the default prefix for archived audit entries
	DefaultAuditPrefix = "audit-log/"
)

// S3StorageError defines custom errors for S3Storage
type S3StorageError struct {
	Message string
	Err     error
}

// Error returns the error message
func (e *S3StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// S3StorageOption defines options for the S3Storage
type S3StorageOption func(*S3Storage)

// WithBucket sets the S3 bucket name
func WithBucket(bucket string) S3StorageOption {
	return func(s *S3Storage) {
		s.bucket = bucket
	}
}

// WithPrefix sets the S3 object prefix for tuning records
func WithPrefix(prefix string) S3StorageOption {
	return func(s *S3Storage) {
		s.prefix = prefix
	}
}

// WithRegion sets the AWS region
func WithRegion(region string) S3StorageOption {
	return func(s *S3Storage) {
		s.region = region
	}
}

// WithClient sets a custom S3 client
func WithClient(client *s3.Client) S3StorageOption {
	return func(s *S3Storage) {
		s.client = client
	}
}

// S3Storage implements the Storage interface using AWS S3
type S3Storage struct {
	bucket      string
	prefix      string
	auditPrefix string
	region      string
	client      s3ClientAPI
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(ctx context.Context, opts ...S3StorageOption) (*S3Storage, error) {
	storage := &S3Storage{
		prefix:      DefaultRecordsPrefix,
		auditPrefix: DefaultAuditPrefix,
		region:      "us-east-1", // Default region
	}

	for _, opt := range opts {
		opt(storage)
	}

	if storage.bucket == "" {
		return nil, &S3StorageError{Message: "bucket name is required"}
	}

	if storage.client == nil {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(storage.region))
		if err != nil {
			return nil, &S3StorageError{Message: "failed to load AWS config", Err: err}
		}
		storage.client = s3.NewFromConfig(cfg)
	}

	_, err := storage.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(storage.bucket),
	})
	if err != nil {
		return nil, &S3StorageError{Message: "failed to access S3 bucket", Err: err}
	}

	logger.Info("S3 storage initialized", "bucket", storage.bucket, "prefix", storage.prefix)
	return storage, nil
}

// getObjectKey generates the S3 object key for a record
func (s *S3Storage) getObjectKey(record *TuningRecord) string {
	// Format: tuning-records/fingerprint/record-id.json
	return path.Join(s.prefix, record.Fingerprint, fmt.Sprintf("%s.json", record.ID))
}

// parseObjectKey extracts record ID and fingerprint from an object key
func (s *S3Storage) parseObjectKey(key string) (id, fingerprint string) {
	key = strings.TrimPrefix(key, s.prefix)
	key = strings.TrimPrefix(key, "/")

	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return "", ""
	}

	id = strings.TrimSuffix(parts[len(parts)-1], ".json")
	fingerprint = parts[len(parts)-2]

	return id, fingerprint
}

// SaveTuningRecord saves a tuning record to S3
func (s *S3Storage) SaveTuningRecord(ctx context.Context, record *TuningRecord) error {
	if record == nil {
		return &S3StorageError{Message: "record cannot be nil"}
	}

	key := s.getObjectKey(record)

	data, err := json.Marshal(record)
	if err != nil {
		return &S3StorageError{Message: "failed to marshal record to JSON", Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &S3StorageError{Message: "failed to upload record to S3", Err: err}
	}

	logger.Debug("Saved tuning record to S3", "id", record.ID, "key", key)
	return nil
}

// GetTuningRecord retrieves a tuning record by ID
func (s *S3Storage) GetTuningRecord(ctx context.Context, id string, fingerprint ...string) (*TuningRecord, error) {
	if id == "" {
		return nil, &S3StorageError{Message: "record ID cannot be empty"}
	}

	var prefix string
	if len(fingerprint) > 0 && fingerprint[0] != "" {
		prefix = path.Join(s.prefix, fingerprint[0])
	} else {
		prefix = s.prefix
	}

	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, &S3StorageError{Message: "failed to list objects in S3", Err: err}
	}

	for _, obj := range resp.Contents {
		objID, _ := s.parseObjectKey(*obj.Key)
		if objID == id {
			return s.getRecord(ctx, *obj.Key)
		}
	}

	return nil, &S3StorageError{Message: fmt.Sprintf("record with ID %s not found", id)}
}

// getRecord retrieves and parses a record from S3
func (s *S3Storage) getRecord(ctx context.Context, key string) (*TuningRecord, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &S3StorageError{Message: fmt.Sprintf("record with key %s not found", key)}
		}
		return nil, &S3StorageError{Message: "failed to get object from S3", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &S3StorageError{Message: "failed to read object body", Err: err}
	}

	var record TuningRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &S3StorageError{Message: "failed to unmarshal record from JSON", Err: err}
	}

	return &record, nil
}

// ListTuningRecords lists all tuning records
func (s *S3Storage) ListTuningRecords(ctx context.Context) ([]*TuningRecord, error) {
	records, err := s.listRecordsByPrefix(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records, nil
}

// ListTuningRecordsByFingerprint lists tuning records for one statement shape
func (s *S3Storage) ListTuningRecordsByFingerprint(ctx context.Context, fingerprint string) ([]*TuningRecord, error) {
	if fingerprint == "" {
		return nil, &S3StorageError{Message: "fingerprint cannot be empty"}
	}

	records, err := s.listRecordsByPrefix(ctx, path.Join(s.prefix, fingerprint))
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records, nil
}

// listRecordsByPrefix lists all records with a specific prefix
func (s *S3Storage) listRecordsByPrefix(ctx context.Context, prefix string) ([]*TuningRecord, error) {
	var records []*TuningRecord

	// Use pagination to handle large numbers of objects
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &S3StorageError{Message: "failed to list objects in S3", Err: err}
		}

		for _, obj := range page.Contents {
			record, err := s.getRecord(ctx, *obj.Key)
			if err != nil {
				logger.Warn("Failed to get record", "key", *obj.Key, "error", err)
				continue
			}
			records = append(records, record)
		}
	}

	return records, nil
}

// GetLatestTuningRecord gets the most recent tuning record
func (s *S3Storage) GetLatestTuningRecord(ctx context.Context) (*TuningRecord, error) {
	records, err := s.ListTuningRecords(ctx)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &S3StorageError{Message: "no tuning records found"}
	}

	return records[0], nil
}

// SaveAuditEntry archives one audit entry under the audit prefix
func (s *S3Storage) SaveAuditEntry(ctx context.Context, entry *tracker.AuditLogEntry) error {
	if entry == nil {
		return &S3StorageError{Message: "audit entry cannot be nil"}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return &S3StorageError{Message: "failed to marshal audit entry", Err: err}
	}

	key := path.Join(s.auditPrefix, fmt.Sprintf("%s.json", entry.ID))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &S3StorageError{Message: "failed to upload audit entry to S3", Err: err}
	}

	return nil
}

// DeleteOldRecords deletes records older than the specified duration
func (s *S3Storage) DeleteOldRecords(ctx context.Context, age time.Duration) (int, error) {
	records, err := s.ListTuningRecords(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-age)
	var objectsToDelete []types.ObjectIdentifier
	var count int

	for _, record := range records {
		if record.Timestamp.Before(cutoff) {
			key := s.getObjectKey(record)
			objectsToDelete = append(objectsToDelete, types.ObjectIdentifier{
				Key: aws.String(key),
			})
			count++
		}
	}

	if len(objectsToDelete) == 0 {
		return 0, nil
	}

	// Delete objects in batches (S3 allows up to 1000 objects per request)
	const batchSize = 1000
	for i := 0; i < len(objectsToDelete); i += batchSize {
		end := i + batchSize
		if end > len(objectsToDelete) {
			end = len(objectsToDelete)
		}

		batch := objectsToDelete[i:end]
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return count - (len(objectsToDelete) - i), &S3StorageError{
				Message: "failed to delete objects from S3",
				Err:     err,
			}
		}
	}

	logger.Info("Deleted old tuning records", "count", count, "age", age.String())
	return count, nil
}
