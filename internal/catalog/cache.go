package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-gateway/internal/model"
)

// Cache TTL mirrors the storefront's 60-second page revalidation window:
// catalog data may be up to a minute stale, never more.
const (
	cacheTTL       = 60 * time.Second
	cacheTTLJitter = 5 * time.Second

	keyAllProducts      = "catalog:all"
	keyCollectionPrefix = "catalog:col:"
)

// CachedSource decorates a Source with a Redis read-through cache. Cache
// failures degrade to the wrapped source; a broken Redis never breaks
// catalog reads.
type CachedSource struct {
	source Source
	rdb    *redis.Client
	logger *slog.Logger
}

// NewCachedSource wraps source with the given Redis client.
func NewCachedSource(source Source, rdb *redis.Client, logger *slog.Logger) *CachedSource {
	return &CachedSource{source: source, rdb: rdb, logger: logger}
}

// ListProducts serves the full catalog from cache when possible.
func (c *CachedSource) ListProducts(ctx context.Context) ([]model.Product, error) {
	return c.through(ctx, keyAllProducts, c.source.ListProducts)
}

// CollectionProducts serves a collection from cache when possible. The
// cache key is the lower-cased collection name, matching the
// case-insensitive resolution of the underlying sources.
func (c *CachedSource) CollectionProducts(ctx context.Context, collection string) ([]model.Product, error) {
	key := keyCollectionPrefix + strings.ToLower(collection)
	return c.through(ctx, key, func(ctx context.Context) ([]model.Product, error) {
		return c.source.CollectionProducts(ctx, collection)
	})
}

// FindProduct matches a slug within the cached collection listing.
func (c *CachedSource) FindProduct(ctx context.Context, collection, slug string) (*model.Product, error) {
	products, err := c.CollectionProducts(ctx, collection)
	if err != nil {
		return nil, err
	}
	return FindBySlug(products, slug), nil
}

// through implements the read-through: cache hit wins, miss loads from
// the source and writes back with a jittered TTL so keys populated in
// the same burst do not all expire together.
func (c *CachedSource) through(ctx context.Context, key string, load func(context.Context) ([]model.Product, error)) ([]model.Product, error) {
	if cached, ok := c.get(ctx, key); ok {
		return cached, nil
	}

	products, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, products)
	return products, nil
}

func (c *CachedSource) get(ctx context.Context, key string) ([]model.Product, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("catalog cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return products, true
}

func (c *CachedSource) set(ctx context.Context, key string, products []model.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	ttl := cacheTTL + time.Duration(rand.Int63n(int64(cacheTTLJitter)))
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

var _ Source = (*CachedSource)(nil)
