// Package firestore wraps the Cloud Firestore SDK behind the single document
// write the notifier needs.
package firestore

import (
	"context"
	"errors"
	"fmt"

	gfirestore "cloud.google.com/go/firestore"
)

type (
	// Client is the document store surface consumed by the notifier.
	Client interface {
		// SetDoc creates or replaces the document at the slash-separated path.
		SetDoc(ctx context.Context, path string, data map[string]any) error
	}

	client struct {
		firestore *gfirestore.Client
	}
)

// New wraps a Firestore client.
func New(firestoreClient *gfirestore.Client) (Client, error) {
	if firestoreClient == nil {
		return nil, errors.New("firestore client is required")
	}
	return &client{firestore: firestoreClient}, nil
}

func (c *client) SetDoc(ctx context.Context, path string, data map[string]any) error {
	doc := c.firestore.Doc(path)
	if doc == nil {
		return fmt.Errorf("invalid document path %q", path)
	}
	_, err := doc.Set(ctx, data)
	return err
}
