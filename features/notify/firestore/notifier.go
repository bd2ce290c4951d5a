// Package firestore implements the export.Notifier that surfaces completion
// events to the requesting user's notification feed.
package firestore

import (
	"context"
	"errors"
	"fmt"

	gfirestore "cloud.google.com/go/firestore"

	"github.com/sifthub/exporter/export"
	clientsfirestore "github.com/sifthub/exporter/features/notify/firestore/clients/firestore"
	"github.com/sifthub/exporter/features/useraccess"
	"github.com/sifthub/exporter/telemetry"
)

// notificationType tags every export notification document.
const notificationType = "EXPORT_COMPLETE"

// User-facing notification messages.
const (
	successMessage = "Your export is ready for download"
	failureMessage = "Export failed"
)

type (
	// AccessResolver resolves the GUIDs a notification path is built from.
	AccessResolver interface {
		Resolve(ctx context.Context, userID, clientID, productID int) (*useraccess.Access, error)
	}

	// Options configures the notifier.
	Options struct {
		// Client is the Firestore client wrapper. Required.
		Client clientsfirestore.Client
		// Access resolves user GUIDs. Required.
		Access AccessResolver
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
	}

	// Notifier implements export.Notifier over Firestore.
	Notifier struct {
		client clientsfirestore.Client
		access AccessResolver
		logger telemetry.Logger
	}
)

// NewNotifier validates the options and returns a notifier.
func NewNotifier(opts Options) (*Notifier, error) {
	if opts.Client == nil {
		return nil, errors.New("firestore client is required")
	}
	if opts.Access == nil {
		return nil, errors.New("access resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &Notifier{client: opts.Client, access: opts.Access, logger: logger}, nil
}

// PublishExport implements export.Notifier.
func (n *Notifier) PublishExport(ctx context.Context, job *export.Job, status export.Status, downloadURL string) error {
	access, err := n.access.Resolve(ctx, job.UserID, job.ClientID, job.ProductID)
	if err != nil {
		return export.NotifierFailure("resolve user access", err)
	}

	path := documentPath(access, job.EventID)
	message := failureMessage
	if status == export.StatusSuccess {
		message = successMessage
	}
	data := map[string]any{
		"eventId":     job.EventID,
		"type":        notificationType,
		"status":      string(status),
		"downloadUrl": downloadURL,
		"timestamp":   gfirestore.ServerTimestamp,
		"message":     message,
	}
	if err := n.client.SetDoc(ctx, path, data); err != nil {
		return export.NotifierFailure("publish notification", err)
	}
	n.logger.Info(ctx, "notification published",
		"event_id", job.EventID, "status", string(status))
	return nil
}

// documentPath builds the per-user notification document path.
func documentPath(access *useraccess.Access, eventID string) string {
	return fmt.Sprintf("pd/%s/cl/%s/usr/%s/notifications/%s",
		access.ProductGUID, access.ClientGUID, access.UserGUID, eventID)
}
