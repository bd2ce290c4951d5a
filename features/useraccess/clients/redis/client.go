// Package redis wraps the Redis client behind the hash surface the
// user-access resolver needs.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"goa.design/clue/health"
)

// ErrNotFound reports a hash field miss.
var ErrNotFound = errors.New("hash field not found")

const clientName = "useraccess-redis"

type (
	// Client is the cache surface consumed by the resolver.
	Client interface {
		health.Pinger

		// HGet reads one hash field. A miss returns ErrNotFound.
		HGet(ctx context.Context, key, field string) (string, error)
		// HSet writes one hash field.
		HSet(ctx context.Context, key, field, value string) error
	}

	client struct {
		redis *goredis.Client
	}
)

// New wraps a Redis client.
func New(redisClient *goredis.Client) (Client, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	return &client{redis: redisClient}, nil
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func (c *client) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := c.redis.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (c *client) HSet(ctx context.Context, key, field, value string) error {
	return c.redis.HSet(ctx, key, field, value).Err()
}
