// Package mongo wires the export.AuditStore interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	"github.com/sifthub/exporter/export"
	clientsmongo "github.com/sifthub/exporter/features/audit/mongo/clients/mongo"
)

// Store implements export.AuditStore by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Mongo-backed audit store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Update implements export.AuditStore.
func (s *Store) Update(ctx context.Context, eventID string, clientID int, status export.Status, fields export.AuditFields) (bool, error) {
	return s.client.MarkStatus(ctx, eventID, clientID, string(status), clientsmongo.Fields{
		TotalTime: fields.TotalTime,
		Bucket:    fields.Bucket,
		URL:       fields.URL,
	})
}
