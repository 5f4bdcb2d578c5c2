package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storefront-gateway/internal/model"
)

// StaticCatalog serves pre-generated per-collection product files, the
// storefront's alternative to live catalog queries. Each collection is a
// JSON file named "<collection>_products.json" (collection lower-cased)
// containing an ordered array of product records.
type StaticCatalog struct {
	dir string
}

// NewStaticCatalog creates a static catalog rooted at dir.
func NewStaticCatalog(dir string) *StaticCatalog {
	return &StaticCatalog{dir: dir}
}

// staticProduct is the on-disk record shape. Records carry at least
// name, slug, one of url/description, and a display price; id is
// optional and required only for add-to-cart.
type staticProduct struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
}

const staticFileSuffix = "_products.json"

// ListProducts returns the union of every collection file in the
// directory, ordered by file name then record order.
func (s *StaticCatalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "*"+staticFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("scanning catalog dir: %w", err)
	}
	sort.Strings(entries)

	all := []model.Product{}
	for _, path := range entries {
		products, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, products...)
	}
	return all, nil
}

// CollectionProducts loads the named collection's file. A missing file
// is an unknown collection: empty result, not an error.
func (s *StaticCatalog) CollectionProducts(ctx context.Context, collection string) ([]model.Product, error) {
	path := filepath.Join(s.dir, strings.ToLower(collection)+staticFileSuffix)
	products, err := s.loadFile(path)
	if os.IsNotExist(err) {
		return []model.Product{}, nil
	}
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindProduct matches a slug within the collection's file.
func (s *StaticCatalog) FindProduct(ctx context.Context, collection, slug string) (*model.Product, error) {
	products, err := s.CollectionProducts(ctx, collection)
	if err != nil {
		return nil, err
	}
	return FindBySlug(products, slug), nil
}

// loadFile reads and decodes one collection file.
func (s *StaticCatalog) loadFile(path string) ([]model.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading catalog file %s: %w", filepath.Base(path), err)
	}

	var records []staticProduct
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", filepath.Base(path), err)
	}

	products := make([]model.Product, len(records))
	for i, rec := range records {
		desc := rec.Description
		if desc == "" {
			desc = rec.URL
		}
		products[i] = model.Product{
			ID:          rec.ID,
			Name:        rec.Name,
			Slug:        rec.Slug,
			Description: desc,
			Price:       rec.Price,
		}
	}
	return products, nil
}

var _ Source = (*StaticCatalog)(nil)
