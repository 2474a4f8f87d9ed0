package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optischema/optischema/tracker"
)

// mockS3Client is an in-memory implementation of s3ClientAPI for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	headErr error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.objects {
		if params.Prefix == nil || strings.HasPrefix(key, *params.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	contents := make([]types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}

	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (m *mockS3Client) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, obj := range params.Delete.Objects {
		delete(m.objects, *obj.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func newTestS3Storage(client s3ClientAPI) *S3Storage {
	return &S3Storage{
		bucket:      "test-bucket",
		prefix:      DefaultRecordsPrefix,
		auditPrefix: DefaultAuditPrefix,
		client:      client,
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestS3StorageSaveAndGet(t *testing.T) {
	client := newMockS3Client()
	store := newTestS3Storage(client)
	ctx := context.Background()

	record := testRecord("rec-1", "fp1", time.Now().UTC())
	require.NoError(t, store.SaveTuningRecord(ctx, record))

	_, ok := client.objects["tuning-records/fp1/rec-1.json"]
	assert.True(t, ok, "record should be stored under its fingerprint key")

	got, err := store.GetTuningRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "fp1", got.Fingerprint)
	assert.Equal(t, record.Recommendation.SQLFix, got.Recommendation.SQLFix)

	got, err = store.GetTuningRecord(ctx, "rec-1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
}

func TestS3StorageSaveNilRecord(t *testing.T) {
	store := newTestS3Storage(newMockS3Client())
	assert.Error(t, store.SaveTuningRecord(context.Background(), nil))
}

func TestS3StorageGetMissingRecord(t *testing.T) {
	store := newTestS3Storage(newMockS3Client())

	_, err := store.GetTuningRecord(context.Background(), "ghost")
	assert.Error(t, err)

	_, err = store.GetTuningRecord(context.Background(), "")
	assert.Error(t, err)
}

func TestS3StorageListing(t *testing.T) {
	store := newTestS3Storage(newMockS3Client())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveTuningRecord(ctx, testRecord("old", "fp1", now.Add(-48*time.Hour))))
	require.NoError(t, store.SaveTuningRecord(ctx, testRecord("new", "fp2", now)))

	records, err := store.ListTuningRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID, "listing should be newest first")

	byFp, err := store.ListTuningRecordsByFingerprint(ctx, "fp1")
	require.NoError(t, err)
	require.Len(t, byFp, 1)
	assert.Equal(t, "old", byFp[0].ID)

	_, err = store.ListTuningRecordsByFingerprint(ctx, "")
	assert.Error(t, err)

	latest, err := store.GetLatestTuningRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestS3StorageDeleteOldRecords(t *testing.T) {
	store := newTestS3Storage(newMockS3Client())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveTuningRecord(ctx, testRecord("old", "fp1", now.Add(-48*time.Hour))))
	require.NoError(t, store.SaveTuningRecord(ctx, testRecord("new", "fp2", now)))

	count, err := store.DeleteOldRecords(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := store.ListTuningRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ID)
}

func TestS3StorageAuditEntries(t *testing.T) {
	client := newMockS3Client()
	store := newTestS3Storage(client)
	ctx := context.Background()

	entry := &tracker.AuditLogEntry{
		ID:               "entry-1",
		RecommendationID: "rec-1",
		ToStatus:         tracker.StatusProposed,
	}
	require.NoError(t, store.SaveAuditEntry(ctx, entry))

	_, ok := client.objects["audit-log/entry-1.json"]
	assert.True(t, ok, "audit entry should live under the audit prefix")

	records, err := store.ListTuningRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records, "audit entries must not appear as tuning records")

	assert.Error(t, store.SaveAuditEntry(ctx, nil))
}
