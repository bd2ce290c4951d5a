package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifthub/exporter/export"
)

type fakeClient struct {
	objects        map[string][]byte
	uploadErr      error
	downloadErr    error
	presignErr     error
	gotContentType string
	gotTTL         time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.gotContentType = contentType
	f.objects[key] = data
	return nil
}

func (f *fakeClient) Download(_ context.Context, key string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("missing key")
	}
	return data, nil
}

func (f *fakeClient) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.gotTTL = ttl
	return "https://signed/" + key, nil
}

func (f *fakeClient) Bucket() string { return "sifthub-exports" }

func newTestStorage(t *testing.T, client *fakeClient, maxMB int) *Storage {
	t.Helper()
	s, err := NewStorage(Options{
		Client:      client,
		MaxExportMB: maxMB,
		Now:         func() time.Time { return time.Date(2025, 6, 2, 10, 30, 45, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func TestStorageUploadDefaultsContentType(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	s := newTestStorage(t, client, 1)

	require.NoError(t, s.Upload(context.Background(), "report.xlsx", []byte("data"), ""))
	assert.Equal(t, export.SpreadsheetMIME, client.gotContentType)
}

func TestStorageUploadSizeCap(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	s := newTestStorage(t, client, 1)

	big := make([]byte, 1024*1024+1)
	err := s.Upload(context.Background(), "report.xlsx", big, "")
	require.Error(t, err)
	assert.Equal(t, export.KindStorageWrite, export.KindOf(err))
	assert.Contains(t, err.Error(), "size cap")
	assert.Empty(t, client.objects)

	// At the cap exactly is still allowed.
	require.NoError(t, s.Upload(context.Background(), "report.xlsx", make([]byte, 1024*1024), ""))
}

func TestStorageUploadErrorKind(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.uploadErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}
	s := newTestStorage(t, client, 1)

	err := s.Upload(context.Background(), "report.xlsx", []byte("data"), "")
	require.Error(t, err)
	assert.Equal(t, export.KindStorageWrite, export.KindOf(err))
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestStorageDownloadErrorKind(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.downloadErr = &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}
	s := newTestStorage(t, client, 1)

	_, err := s.Download(context.Background(), "report.xlsx")
	require.Error(t, err)
	assert.Equal(t, export.KindStorageRead, export.KindOf(err))
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestStorageDownloadRoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	s := newTestStorage(t, client, 1)

	require.NoError(t, s.Upload(context.Background(), "report.xlsx", []byte("data"), ""))
	data, err := s.Download(context.Background(), "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestStoragePresignGetPassesTTL(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	s := newTestStorage(t, client, 1)

	url, err := s.PresignGet(context.Background(), "report.xlsx", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/report.xlsx", url)
	assert.Equal(t, time.Hour, client.gotTTL)
}

func TestStorageComputeKey(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t, newFakeClient(), 1)
	key := s.ComputeKey("evt-1", 42, "insights", "responseGeneration", "frequentAskedQuestions")
	assert.Equal(t, "exports/42/evt-1/insights_responseGeneration_frequentAskedQuestions_20250602_103045.xlsx", key)
}

func TestStorageBucket(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t, newFakeClient(), 1)
	assert.Equal(t, "sifthub-exports", s.Bucket())
}
