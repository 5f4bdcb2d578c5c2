// Package model defines the domain types shared across the gateway:
// catalog entries, the cart mirror, and the error taxonomy.
package model

// Product is a single catalog entry. Products are immutable once fetched;
// resolvers return fresh copies on every lookup.
type Product struct {
	// ID is the platform-assigned catalog item identifier (opaque).
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Slug is the URL-safe identifier, unique within a collection.
	Slug string `json:"slug"`

	// Description is optional display copy.
	Description string `json:"description,omitempty"`

	// Price is the display-formatted price (e.g. "¥1,200", "$19.00").
	Price string `json:"price"`

	// Options holds the selectable options, in catalog order.
	Options []ProductOption `json:"options,omitempty"`

	// Collections lists the IDs of collections this product belongs to.
	Collections []string `json:"collections,omitempty"`
}

// ProductOption is a named option with its ordered choice descriptions.
// The first choice is the default selection when adding to cart.
type ProductOption struct {
	Name    string   `json:"name"`
	Choices []string `json:"choices"`
}

// DefaultSelections returns the deterministic option selection for a
// product: the first listed choice of every option. Products without
// options return nil.
func (p *Product) DefaultSelections() map[string]string {
	if len(p.Options) == 0 {
		return nil
	}
	selected := make(map[string]string, len(p.Options))
	for _, opt := range p.Options {
		if len(opt.Choices) > 0 {
			selected[opt.Name] = opt.Choices[0]
		}
	}
	return selected
}

// Collection is a named grouping of products ("agent" in storefront terms).
// Names are matched case-insensitively.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductFilter narrows a catalog query. The zero value matches everything.
type ProductFilter struct {
	// CollectionID restricts results to products whose collection
	// membership includes this ID.
	CollectionID string `json:"collection_id,omitempty"`
}

// ProductPage is one page of a paginated catalog query.
type ProductPage struct {
	Items []Product `json:"items"`

	// NextCursor is the opaque continuation token for the next page.
	// Empty means no further pages.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Cart mirrors the remote cart. It is never authoritative: every mutation
// replaces the whole mirror with the server's response, and a failed
// mutation leaves the previous mirror untouched.
type Cart struct {
	// ID is assigned by the remote platform. Empty for the zero cart.
	ID string `json:"id,omitempty"`

	// LineItems in server order.
	LineItems []LineItem `json:"line_items"`

	// Subtotal is the display-formatted subtotal from the server.
	Subtotal string `json:"subtotal,omitempty"`

	// Currency is the ISO 4217 code.
	Currency string `json:"currency,omitempty"`
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.LineItems) == 0
}

// FindByCatalogID returns the line item referencing the given catalog item
// ID, or nil. There is at most one per catalog ID: adds merge by
// incrementing quantity instead of creating duplicates.
func (c *Cart) FindByCatalogID(catalogItemID string) *LineItem {
	if c == nil {
		return nil
	}
	for i := range c.LineItems {
		if c.LineItems[i].CatalogItemID == catalogItemID {
			return &c.LineItems[i]
		}
	}
	return nil
}

// LineItem is one product-quantity pairing within a cart.
type LineItem struct {
	// ID is the line item identifier assigned by the remote platform on add.
	ID string `json:"id"`

	// CatalogItemID references the product's catalog identifier.
	CatalogItemID string `json:"catalog_item_id"`

	// Name is the resolved display name snapshot.
	Name string `json:"name"`

	// Quantity is always positive; a transition to zero removes the item.
	Quantity int `json:"quantity"`

	// UnitPrice is the display-formatted unit price snapshot.
	UnitPrice string `json:"unit_price,omitempty"`
}

// RedirectSession is the product of a successful checkout attempt: an
// externally hosted checkout keyed to a cart snapshot, plus the URL the
// buyer must be sent to.
type RedirectSession struct {
	CheckoutID string `json:"checkout_id"`
	URL        string `json:"redirect_url"`
}
