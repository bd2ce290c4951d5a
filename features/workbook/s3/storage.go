// Package s3 wires the export.WorkbookStore interface to the S3 client and
// folds storage failures into the pipeline error taxonomy.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"

	"github.com/sifthub/exporter/export"
	clientss3 "github.com/sifthub/exporter/features/workbook/s3/clients/s3"
	"github.com/sifthub/exporter/telemetry"
)

// DefaultMaxExportMB caps the assembled workbook size. Exports beyond it fail
// as storage writes rather than ballooning worker memory.
const DefaultMaxExportMB = 100

type (
	// Options configures the workbook store.
	Options struct {
		// Client is the S3 client wrapper. Required.
		Client clientss3.Client
		// MaxExportMB caps upload size in MiB. Defaults to DefaultMaxExportMB.
		MaxExportMB int
		// Metrics receives upload counters. Optional.
		Metrics telemetry.Metrics
		// Now overrides the key timestamp clock for tests.
		Now func() time.Time
	}

	// Storage implements export.WorkbookStore.
	Storage struct {
		client      clientss3.Client
		maxExportMB int
		metrics     telemetry.Metrics
		now         func() time.Time
	}
)

// NewStorage validates the options and returns a workbook store.
func NewStorage(opts Options) (*Storage, error) {
	if opts.Client == nil {
		return nil, errors.New("s3 client is required")
	}
	maxMB := opts.MaxExportMB
	if maxMB <= 0 {
		maxMB = DefaultMaxExportMB
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Storage{client: opts.Client, maxExportMB: maxMB, metrics: metrics, now: now}, nil
}

// Upload implements export.WorkbookStore.
func (s *Storage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if limit := s.maxExportMB * 1024 * 1024; len(data) > limit {
		return export.StorageWrite(
			fmt.Sprintf("workbook %s exceeds export size cap (%d > %d bytes)", key, len(data), limit), nil)
	}
	if contentType == "" {
		contentType = export.SpreadsheetMIME
	}
	if err := s.client.Upload(ctx, key, data, contentType); err != nil {
		return export.StorageWrite(describe("upload", key, err), err)
	}
	s.metrics.IncCounter("exporter.storage.bytes_uploaded", float64(len(data)))
	return nil
}

// Download implements export.WorkbookStore.
func (s *Storage) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Download(ctx, key)
	if err != nil {
		return nil, export.StorageRead(describe("download", key, err), err)
	}
	return data, nil
}

// PresignGet implements export.WorkbookStore.
func (s *Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.client.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", export.StorageWrite(describe("presign", key, err), err)
	}
	return url, nil
}

// Bucket implements export.WorkbookStore.
func (s *Storage) Bucket() string {
	return s.client.Bucket()
}

// ComputeKey implements export.WorkbookStore using the legacy layout kept for
// consumers that scrape the bucket by prefix.
func (s *Storage) ComputeKey(eventID string, clientID int, module, typ, subType string) string {
	ts := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("exports/%d/%s/%s_%s_%s_%s.xlsx", clientID, eventID, module, typ, subType, ts)
}

// describe folds the S3 error code into the taxonomy message when present.
func describe(op, key string, err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s %s: %s", op, key, apiErr.ErrorCode())
	}
	return fmt.Sprintf("%s %s", op, key)
}
