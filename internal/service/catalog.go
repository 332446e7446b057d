package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// CatalogAPI is the read-only part of the backend the catalog cache wraps.
type CatalogAPI interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	Products(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error)
	Product(ctx context.Context, slug string) (*catalog.Product, error)
	SearchSuggestions(ctx context.Context, prefix string) ([]string, error)
}

// Catalog caches catalog reads for ttl. Concurrent misses for the same key
// share one request. Cart and wishlist data is never cached here.
type Catalog struct {
	api   CatalogAPI
	ttl   time.Duration
	cache *cache.Cache
	group singleflight.Group
}

// NewCatalog creates a catalog cache. A ttl of zero disables caching.
func NewCatalog(api CatalogAPI, ttl time.Duration) *Catalog {
	// No janitor goroutine: expired entries are skipped by Get and dropped on
	// the next Set for the same key.
	return &Catalog{api: api, ttl: ttl, cache: cache.New(ttl, 0)}
}

// Categories returns all categories.
func (c *Catalog) Categories(ctx context.Context) ([]catalog.Category, error) {
	return cached(ctx, c, "categories", c.api.Categories)
}

// Products returns products matching q.
func (c *Catalog) Products(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	key := fmt.Sprintf("products:%s|%s|%s|%s|%t|%s",
		q.Search, q.Category, q.MinPrice, q.MaxPrice, q.InStock, q.Sort)
	return cached(ctx, c, key, func(ctx context.Context) ([]catalog.Product, error) {
		return c.api.Products(ctx, q)
	})
}

// Product returns the product with slug.
func (c *Catalog) Product(ctx context.Context, slug string) (*catalog.Product, error) {
	return cached(ctx, c, "product:"+slug, func(ctx context.Context) (*catalog.Product, error) {
		return c.api.Product(ctx, slug)
	})
}

// Suggestions returns search completions for prefix. The prefix is sent as
// typed; only the cache key is normalized.
func (c *Catalog) Suggestions(ctx context.Context, prefix string) ([]string, error) {
	norm := strings.ToLower(strings.TrimSpace(prefix))
	if norm == "" {
		return nil, nil
	}
	return cached(ctx, c, "suggest:"+norm, func(ctx context.Context) ([]string, error) {
		return c.api.SearchSuggestions(ctx, prefix)
	})
}

// Invalidate drops every cached entry.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}

// cached serves key from the cache or fetches it once for all concurrent
// callers. The shared fetch is detached from any single caller's
// cancellation; a caller whose ctx ends stops waiting without failing the
// others.
func cached[T any](ctx context.Context, c *Catalog, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.ttl > 0 {
		if v, ok := c.cache.Get(key); ok {
			return v.(T), nil
		}
	}
	ch := c.group.DoChan(key, func() (any, error) {
		val, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.cache.Set(key, val, cache.DefaultExpiration)
		}
		return val, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
