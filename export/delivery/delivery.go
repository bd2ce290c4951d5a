// Package delivery implements the sinks that finalize artifact delivery: the
// download sink hands the user a presigned URL, the email sink is a stub
// until outbound mail lands.
package delivery

import (
	"context"
	"errors"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/telemetry"
)

// Delivery method identifiers recorded on the sink result.
const (
	MethodDownload = "download"
	MethodEmail    = "email"
)

// emailStubMessage is returned by the email sink until real delivery exists.
const emailStubMessage = "Email delivery functionality will be implemented in future release"

type (
	// DownloadSink implements export.DeliverySink for the download mode. A
	// streaming handle passes through untouched; legacy byte payloads are
	// uploaded under the computed key and presigned here.
	DownloadSink struct {
		store  export.WorkbookStore
		logger telemetry.Logger
	}

	// EmailSink implements export.DeliverySink for the email mode.
	EmailSink struct {
		logger telemetry.Logger
	}
)

// NewDownloadSink returns a download sink backed by the workbook store.
func NewDownloadSink(store export.WorkbookStore, logger telemetry.Logger) (*DownloadSink, error) {
	if store == nil {
		return nil, errors.New("workbook store is required")
	}
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &DownloadSink{store: store, logger: logger}, nil
}

// Deliver implements export.DeliverySink.
func (s *DownloadSink) Deliver(ctx context.Context, in export.DeliveryInput, filename string, job *export.Job) (export.Delivery, error) {
	if in.Handle.Key != "" {
		return export.Delivery{
			Success: true,
			Bucket:  in.Handle.Bucket,
			Key:     in.Handle.Key,
			URL:     in.Handle.PresignedURL,
			Method:  MethodDownload,
		}, nil
	}
	if len(in.Bytes) == 0 {
		return export.Delivery{}, export.StorageWrite("delivery input carries neither handle nor bytes", nil)
	}

	key := s.store.ComputeKey(job.EventID, job.ClientID, string(job.Module), job.Type, job.SubType)
	if err := s.store.Upload(ctx, key, in.Bytes, export.SpreadsheetMIME); err != nil {
		return export.Delivery{}, err
	}
	url, err := s.store.PresignGet(ctx, key, 0)
	if err != nil {
		return export.Delivery{}, err
	}
	s.logger.Info(ctx, "artifact uploaded for download",
		"event_id", job.EventID, "key", key, "bytes", len(in.Bytes))
	return export.Delivery{
		Success: true,
		Bucket:  s.store.Bucket(),
		Key:     key,
		URL:     url,
		Method:  MethodDownload,
	}, nil
}

// NewEmailSink returns the email stub sink.
func NewEmailSink(logger telemetry.Logger) *EmailSink {
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &EmailSink{logger: logger}
}

// Deliver implements export.DeliverySink. The artifact already exists in
// storage; this only records that email delivery is not built yet, so the
// audit row carries neither bucket nor URL.
func (s *EmailSink) Deliver(ctx context.Context, _ export.DeliveryInput, filename string, job *export.Job) (export.Delivery, error) {
	s.logger.Info(ctx, "email delivery requested",
		"event_id", job.EventID, "filename", filename)
	return export.Delivery{
		Success: true,
		Key:     filename,
		Method:  MethodEmail,
		Message: emailStubMessage,
	}, nil
}
