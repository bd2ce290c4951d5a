package export

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. The consumer uses it to decide whether a
// broker message is acknowledged (poison, no redrive) or left for redrive.
type Kind string

const (
	// KindTransientUpstream covers analytics reads that failed at the
	// transport level; the broker redrives these.
	KindTransientUpstream Kind = "transient_upstream"
	// KindStorageWrite covers object store uploads, including multipart parts.
	KindStorageWrite Kind = "storage_write"
	// KindStorageRead covers object store downloads and workbook decodes.
	KindStorageRead Kind = "storage_read"
	// KindInvalidMessage marks a job that failed validation; acknowledged.
	KindInvalidMessage Kind = "invalid_message"
	// KindUnsupportedReport marks a (module, type, subType) or mode with no
	// registered handler; acknowledged.
	KindUnsupportedReport Kind = "unsupported_report"
	// KindAuditWriteMiss marks an audit update that matched zero rows. Never
	// fails a job on its own.
	KindAuditWriteMiss Kind = "audit_write_miss"
	// KindNotifierFailure marks a notification publish error. Logged and
	// swallowed by the router.
	KindNotifierFailure Kind = "notifier_failure"
)

// Error is the structured failure carried across pipeline boundaries. Cause
// preserves the underlying error chain for errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Upstream wraps a failed analytics read.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindTransientUpstream, Message: message, Cause: cause}
}

// StorageWrite wraps a failed object store upload.
func StorageWrite(message string, cause error) *Error {
	return &Error{Kind: KindStorageWrite, Message: message, Cause: cause}
}

// StorageRead wraps a failed object store download.
func StorageRead(message string, cause error) *Error {
	return &Error{Kind: KindStorageRead, Message: message, Cause: cause}
}

// InvalidMessage reports a malformed or incomplete job.
func InvalidMessage(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidMessage, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedReport reports a dispatch miss.
func UnsupportedReport(format string, args ...any) *Error {
	return &Error{Kind: KindUnsupportedReport, Message: fmt.Sprintf(format, args...)}
}

// NotifierFailure wraps a notification publish error.
func NotifierFailure(message string, cause error) *Error {
	return &Error{Kind: KindNotifierFailure, Message: message, Cause: cause}
}

// KindOf extracts the domain kind from an arbitrary error chain. Errors
// outside the taxonomy report KindTransientUpstream so unknown failures stay
// on the redrive path.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransientUpstream
}

// Acknowledgeable reports whether the broker message carrying the failed job
// should be deleted instead of redriven.
func Acknowledgeable(err error) bool {
	switch KindOf(err) {
	case KindInvalidMessage, KindUnsupportedReport:
		return true
	}
	return false
}
