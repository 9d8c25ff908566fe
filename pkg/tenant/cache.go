package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize is the default maximum number of cached organizations.
	DefaultCacheSize = 1000

	// DefaultCacheTTL bounds how long a deactivation can go unnoticed.
	DefaultCacheTTL = 5 * time.Minute
)

// Cache stores organizations by key. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*Organization, bool)
	Set(ctx context.Context, key string, org *Organization)
	Delete(ctx context.Context, keys ...string)
}

// lruCache is an in-process Cache with a fixed size and per-entry TTL.
type lruCache struct {
	lru *expirable.LRU[string, Organization]
}

// NewLRUCache creates an in-process cache holding at most size entries for ttl each.
func NewLRUCache(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &lruCache{lru: expirable.NewLRU[string, Organization](size, nil, ttl)}
}

func (c *lruCache) Get(_ context.Context, key string) (*Organization, bool) {
	org, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &org, true
}

func (c *lruCache) Set(_ context.Context, key string, org *Organization) {
	if org == nil {
		return
	}
	c.lru.Add(key, *org)
}

func (c *lruCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

// NoOpCache disables caching.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (*Organization, bool) { return nil, false }
func (NoOpCache) Set(context.Context, string, *Organization)        {}
func (NoOpCache) Delete(context.Context, ...string)                 {}

// CachedDirectory decorates a Directory with a short-TTL cache.
// Only active organizations are cached, and the single-tenant default is never cached.
// The external write path must call Invalidate on deactivation or module changes.
type CachedDirectory struct {
	next  Directory
	cache Cache
}

// NewCachedDirectory wraps next with cache.
func NewCachedDirectory(next Directory, cache Cache) *CachedDirectory {
	if cache == nil {
		cache = NoOpCache{}
	}
	return &CachedDirectory{next: next, cache: cache}
}

func codeKey(code string) string { return "code:" + code }
func idKey(id uuid.UUID) string  { return "id:" + id.String() }

func (d *CachedDirectory) FindActiveByCode(ctx context.Context, code string) (*Organization, error) {
	if org, ok := d.cache.Get(ctx, codeKey(code)); ok && org.Active {
		return org, nil
	}
	org, err := d.next.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	d.store(ctx, org)
	return org, nil
}

func (d *CachedDirectory) FindActiveByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	if org, ok := d.cache.Get(ctx, idKey(id)); ok && org.Active {
		return org, nil
	}
	org, err := d.next.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, org)
	return org, nil
}

func (d *CachedDirectory) GetOrCreateDefault(ctx context.Context, code string) (*Organization, error) {
	return d.next.GetOrCreateDefault(ctx, code)
}

// Invalidate drops every cached entry for org.
func (d *CachedDirectory) Invalidate(ctx context.Context, org *Organization) {
	if org == nil {
		return
	}
	d.cache.Delete(ctx, codeKey(org.Code), idKey(org.ID))
}

func (d *CachedDirectory) store(ctx context.Context, org *Organization) {
	if org == nil || !org.Active {
		return
	}
	d.cache.Set(ctx, codeKey(org.Code), org)
	d.cache.Set(ctx, idKey(org.ID), org)
}
