// Package mongo implements the low-level MongoDB client used by the audit store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"
)

type (
	// Client exposes Mongo-backed operations for the export audit log.
	Client interface {
		health.Pinger

		// MarkStatus applies one atomic status transition to the audit row
		// identified by (eventID, clientID). It reports whether exactly one
		// row matched and was modified.
		MarkStatus(ctx context.Context, eventID string, clientID int, status string, fields Fields) (bool, error)
	}

	// Fields are the optional columns written alongside a transition. Zero
	// values are omitted from the update.
	Fields struct {
		TotalTime *int
		Bucket    string
		URL       string
	}

	// Options configures the Mongo client implementation.
	Options struct {
		Client     *mongodriver.Client
		Database   string
		Collection string
		Timeout    time.Duration
	}

	client struct {
		mongo   *mongodriver.Client
		coll    collection
		timeout time.Duration
		now     func() time.Time
	}
)

const (
	defaultCollection = "report_audit_log"
	defaultTimeout    = 5 * time.Second
	clientName        = "audit-mongo"
)

// New returns a Client backed by the provided MongoDB client.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	mcoll := opts.Client.Database(opts.Database).Collection(coll)
	return newClientWithCollection(opts.Client, mongoCollection{coll: mcoll}, opts.Timeout)
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) MarkStatus(ctx context.Context, eventID string, clientID int, status string, fields Fields) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	if status == "" {
		return false, errors.New("status is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	set := bson.M{
		"status":     status,
		"updated_at": c.now().UTC(),
	}
	if fields.TotalTime != nil {
		set["total_time"] = *fields.TotalTime
	}
	if fields.Bucket != "" {
		set["s3_bucket"] = fields.Bucket
	}
	if fields.URL != "" {
		set["download_url"] = fields.URL
	}

	res, err := c.coll.UpdateOne(ctx,
		bson.M{"event_id": eventID, "client_id": clientID},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1 && res.ModifiedCount == 1, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		mongo:   mongoClient,
		coll:    coll,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

type collection interface {
	UpdateOne(ctx context.Context, filter any, update any) (*mongodriver.UpdateResult, error)
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update)
}
