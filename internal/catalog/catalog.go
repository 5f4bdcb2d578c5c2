// Package catalog resolves human-facing identifiers (collection names,
// product slugs) to catalog entries.
//
// The canonical resolution strategy is collection-membership filtering:
// match the requested name case-insensitively against the collection
// list, then query the products whose membership includes the matched
// collection's ID. Unknown names resolve to an empty result, never an
// error; pages render a "no products" state instead of failing.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
)

// Source is a product catalog as consumed by handlers. The remote
// Resolver is the canonical implementation; StaticCatalog serves
// pre-generated per-collection files; CachedSource decorates either.
type Source interface {
	// ListProducts returns the whole catalog.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// CollectionProducts returns the products of the named collection,
	// in catalog order. Unknown collections yield an empty slice.
	CollectionProducts(ctx context.Context, collection string) ([]model.Product, error)

	// FindProduct returns the single product in the collection whose
	// slug matches case-insensitively. A missing or ambiguous match
	// returns (nil, nil): "not found" is a terminal state, not a fault.
	FindProduct(ctx context.Context, collection, slug string) (*model.Product, error)
}

// maxPages caps pagination so a misbehaving upstream cursor cannot loop
// the resolver forever.
const maxPages = 1000

// Resolver resolves against the remote catalog.
type Resolver struct {
	catalog commerce.Catalog
}

// NewResolver creates a Resolver backed by the given catalog client.
func NewResolver(c commerce.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// ListProducts enumerates the full catalog, following the continuation
// cursor until the server signals no further pages.
func (r *Resolver) ListProducts(ctx context.Context) ([]model.Product, error) {
	return r.collectAll(ctx, model.ProductFilter{})
}

// CollectionProducts resolves a collection name to its products.
func (r *Resolver) CollectionProducts(ctx context.Context, collection string) ([]model.Product, error) {
	matched, err := r.findCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		return []model.Product{}, nil
	}
	return r.collectAll(ctx, model.ProductFilter{CollectionID: matched.ID})
}

// FindProduct resolves a collection name and slug to one product.
func (r *Resolver) FindProduct(ctx context.Context, collection, slug string) (*model.Product, error) {
	products, err := r.CollectionProducts(ctx, collection)
	if err != nil {
		return nil, err
	}
	return FindBySlug(products, slug), nil
}

// findCollection matches the requested name case-insensitively against
// the collection list. Returns nil when nothing matches.
func (r *Resolver) findCollection(ctx context.Context, name string) (*model.Collection, error) {
	collections, err := r.catalog.QueryCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	for i := range collections {
		if strings.EqualFold(collections[i].Name, name) {
			return &collections[i], nil
		}
	}
	return nil, nil
}

// collectAll accumulates every page of a product query. A failure on any
// page fails the whole resolution; partial results are never returned.
// Duplicate catalog IDs across pages are dropped.
func (r *Resolver) collectAll(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	var (
		all    = []model.Product{}
		seen   = map[string]bool{}
		cursor string
	)

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("product query exceeded %d pages", maxPages)
		}

		result, err := r.catalog.QueryProducts(ctx, filter, cursor)
		if err != nil {
			return nil, fmt.Errorf("querying products: %w", err)
		}

		for _, p := range result.Items {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			all = append(all, p)
		}

		if result.NextCursor == "" {
			return all, nil
		}
		if result.NextCursor == cursor {
			return nil, fmt.Errorf("product query cursor did not advance")
		}
		cursor = result.NextCursor
	}
}

// FindBySlug returns the single product whose slug matches
// case-insensitively, or nil when the match is missing or ambiguous.
func FindBySlug(products []model.Product, slug string) *model.Product {
	var found *model.Product
	for i := range products {
		if strings.EqualFold(products[i].Slug, slug) {
			if found != nil {
				return nil // ambiguous
			}
			found = &products[i]
		}
	}
	if found == nil {
		return nil
	}
	p := *found
	return &p
}

var _ Source = (*Resolver)(nil)
