package export

import (
	"context"
	"time"
)

// SpreadsheetMIME is the content type under which artifacts are stored.
const SpreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type (
	// Handle identifies a materialized artifact across component boundaries.
	Handle struct {
		Bucket       string
		Key          string
		PresignedURL string
	}

	// DeliveryInput carries either a streaming handle produced by a builder
	// (preferred) or a fully assembled workbook (legacy path). Exactly one of
	// the two is set.
	DeliveryInput struct {
		Handle Handle
		Bytes  []byte
	}

	// Delivery is the sink result recorded in the audit row and surfaced to
	// the notifier.
	Delivery struct {
		Success bool
		Bucket  string
		Key     string
		URL     string
		Method  string
		Message string
	}

	// AuditFields are the optional columns written alongside a status
	// transition. Nil TotalTime and empty strings are omitted from the update.
	AuditFields struct {
		TotalTime *int
		Bucket    string
		URL       string
	}

	// ReportBuilder turns a job into a finished artifact in object storage.
	ReportBuilder interface {
		// Build assembles the workbook and returns its storage handle. The
		// presigned URL is minted after the last append.
		Build(ctx context.Context, job *Job) (Handle, error)
		// Filename computes the user-facing artifact name for the job.
		Filename(job *Job) string
	}

	// DeliverySink finalizes delivery of an artifact to the user.
	DeliverySink interface {
		Deliver(ctx context.Context, in DeliveryInput, filename string, job *Job) (Delivery, error)
	}

	// AuditStore transitions the job's audit row. The boolean result reports
	// whether exactly one row was modified.
	AuditStore interface {
		Update(ctx context.Context, eventID string, clientID int, status Status, fields AuditFields) (bool, error)
	}

	// Notifier publishes the export-completion event to the requesting user.
	// Implementations must be safe to call after the terminal audit write.
	Notifier interface {
		PublishExport(ctx context.Context, job *Job, status Status, downloadURL string) error
	}

	// WorkbookStore is the object storage adapter builders and sinks write
	// through. One in-flight write per key is guaranteed by the sequential
	// pipeline.
	WorkbookStore interface {
		Upload(ctx context.Context, key string, data []byte, contentType string) error
		Download(ctx context.Context, key string) ([]byte, error)
		// PresignGet mints a presigned download URL. A zero ttl selects the
		// store's configured default expiry.
		PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
		Bucket() string
		ComputeKey(eventID string, clientID int, module, typ, subType string) string
	}
)
