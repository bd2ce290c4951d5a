// Package useraccess resolves the document-store GUIDs of a (user, client,
// product) triple. Lookups hit the shared Redis role cache first and fall
// back to the client service, writing the result back through the cache.
package useraccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	clientsredis "github.com/sifthub/exporter/features/useraccess/clients/redis"
	"github.com/sifthub/exporter/httpclient"
	"github.com/sifthub/exporter/telemetry"
)

// hashKey is the Redis hash holding all role-access entries.
const hashKey = "USER_ROLE_ACCESS"

// fallbackEndpoint is the client-service cache load path.
const fallbackEndpoint = "/api/v1/product-service/access/cache/user-id/%d/%d/%d"

type (
	// Access carries the GUIDs a notification document path is built from.
	Access struct {
		ProductGUID string `json:"productGuid"`
		ClientGUID  string `json:"clientGuid"`
		UserGUID    string `json:"userGuid"`
	}

	// Options configures the resolver.
	Options struct {
		// Cache is the Redis hash client. Required.
		Cache clientsredis.Client
		// HTTP is the shared HTTP client for the fallback. Required.
		HTTP httpclient.Doer
		// BaseURL is the client service origin. Required.
		BaseURL string
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
	}

	// Resolver implements the cache-then-service GUID lookup.
	Resolver struct {
		cache   clientsredis.Client
		http    httpclient.Doer
		baseURL string
		logger  telemetry.Logger
	}

	// wrapped tolerates fallback responses that nest the access record under
	// a data key.
	wrapped struct {
		Data Access `json:"data"`
	}
)

// NewResolver validates the options and returns a resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Cache == nil {
		return nil, errors.New("cache client is required")
	}
	if opts.HTTP == nil {
		return nil, errors.New("http client is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &Resolver{
		cache:   opts.Cache,
		http:    opts.HTTP,
		baseURL: opts.BaseURL,
		logger:  logger,
	}, nil
}

// Resolve returns the GUIDs of the triple, from cache when possible.
func (r *Resolver) Resolve(ctx context.Context, userID, clientID, productID int) (*Access, error) {
	field := hashField(userID, clientID, productID)

	raw, err := r.cache.HGet(ctx, hashKey, field)
	switch {
	case err == nil:
		var access Access
		if jerr := json.Unmarshal([]byte(raw), &access); jerr == nil && access.complete() {
			return &access, nil
		}
		r.logger.Warn(ctx, "discarding malformed access cache entry", "field", field)
	case errors.Is(err, clientsredis.ErrNotFound):
		r.logger.Debug(ctx, "access cache miss", "field", field)
	default:
		// Cache trouble must not block notifications; go straight to the
		// client service.
		r.logger.Warn(ctx, "access cache read failed", "field", field, "err", err.Error())
	}

	access, err := r.load(ctx, userID, clientID, productID)
	if err != nil {
		return nil, err
	}
	r.writeBack(ctx, field, access)
	return access, nil
}

// load fetches the access record from the client service.
func (r *Resolver) load(ctx context.Context, userID, clientID, productID int) (*Access, error) {
	url := r.baseURL + fmt.Sprintf(fallbackEndpoint, userID, clientID, productID)

	var body json.RawMessage
	if err := httpclient.GetJSON(ctx, r.http, url, nil, &body); err != nil {
		return nil, fmt.Errorf("load user access: %w", err)
	}

	var access Access
	if err := json.Unmarshal(body, &access); err == nil && access.complete() {
		return &access, nil
	}
	var w wrapped
	if err := json.Unmarshal(body, &w); err == nil && w.Data.complete() {
		return &w.Data, nil
	}
	return nil, fmt.Errorf("user access record incomplete for user %d client %d product %d", userID, clientID, productID)
}

// writeBack caches a freshly loaded record. Failures are logged only.
func (r *Resolver) writeBack(ctx context.Context, field string, access *Access) {
	raw, err := json.Marshal(access)
	if err != nil {
		return
	}
	if err := r.cache.HSet(ctx, hashKey, field, string(raw)); err != nil {
		r.logger.Warn(ctx, "access cache write failed", "field", field, "err", err.Error())
	}
}

func (a *Access) complete() bool {
	return a.ProductGUID != "" && a.ClientGUID != "" && a.UserGUID != ""
}

func hashField(userID, clientID, productID int) string {
	return fmt.Sprintf("CLIENT_%d_PRODUCT_%d_USERID_%d", clientID, productID, userID)
}
