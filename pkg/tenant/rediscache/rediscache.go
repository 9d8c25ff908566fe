// Package rediscache shares the organization cache between replicas through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

// Cache implements tenant.Cache. Redis failures degrade to cache misses.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the cache.
type Option func(*Cache)

// WithLogger sets the logger used for Redis failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a cache storing entries under prefix + "org:" for ttl.
func New(client redis.UniversalClient, prefix string, ttl time.Duration, opts ...Option) *Cache {
	if client == nil {
		panic("rediscache: client cannot be nil")
	}
	if ttl <= 0 {
		ttl = tenant.DefaultCacheTTL
	}
	c := &Cache{
		client: client,
		prefix: prefix + "org:",
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(ctx context.Context, key string) (*tenant.Organization, bool) {
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, "get", err)
		}
		return nil, false
	}

	var org tenant.Organization
	if err := json.Unmarshal(payload, &org); err != nil {
		c.warn(ctx, "decode", err)
		return nil, false
	}
	return &org, true
}

func (c *Cache) Set(ctx context.Context, key string, org *tenant.Organization) {
	if org == nil {
		return
	}
	payload, err := json.Marshal(org)
	if err != nil {
		c.warn(ctx, "encode", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.warn(ctx, "delete", err)
	}
}

func (c *Cache) warn(ctx context.Context, op string, err error) {
	c.logger.WarnContext(ctx, "organization cache "+op+" failed",
		logger.Component("tenant.rediscache"), logger.Error(err))
}
