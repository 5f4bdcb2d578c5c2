// Package commerce defines the interface to the remote commerce platform.
// The platform is an external collaborator: it owns carts, pricing, and
// checkout; this gateway only issues request/response calls against it.
// The concrete implementation lives in internal/wix.
package commerce

import (
	"context"

	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
)

// ChannelType identifies the sales channel on checkout creation.
const (
	ChannelWeb = "WEB"
)

// LineItemInput describes an item to add to the current cart.
type LineItemInput struct {
	// CatalogItemID is the product's catalog identifier. Required.
	CatalogItemID string

	// Quantity must be positive.
	Quantity int

	// Options carries the selected option choices (name → choice
	// description). Nil for products without options.
	Options map[string]string
}

// Catalog exposes read-only catalog queries. Catalog reads are public and
// need no visitor session.
type Catalog interface {
	// QueryProducts returns one page of products matching the filter.
	// cursor is the opaque continuation token from a previous page;
	// empty requests the first page.
	QueryProducts(ctx context.Context, filter model.ProductFilter, cursor string) (*model.ProductPage, error)

	// QueryCollections lists all collections.
	QueryCollections(ctx context.Context) ([]model.Collection, error)
}

// Carts exposes the current-cart operations for one visitor session.
// The platform is the sole source of truth: every mutating call returns
// (or is followed by a refetch of) the full authoritative cart.
type Carts interface {
	// GetCurrentCart returns the session's cart. A session with no cart
	// yet yields model.ErrNotFound.
	GetCurrentCart(ctx context.Context, accessToken string) (*model.Cart, error)

	// AddToCurrentCart adds line items, creating the cart if needed,
	// and returns the updated cart.
	AddToCurrentCart(ctx context.Context, accessToken string, items []LineItemInput) (*model.Cart, error)

	// UpdateLineItemQuantity sets a line item's quantity and returns the
	// updated cart. Quantity must be positive; removal is a separate call.
	UpdateLineItemQuantity(ctx context.Context, accessToken, lineItemID string, quantity int) (*model.Cart, error)

	// RemoveLineItem deletes a line item. The response body is discarded;
	// callers refetch the cart to refresh their mirror.
	RemoveLineItem(ctx context.Context, accessToken, lineItemID string) error

	// DeleteCurrentCart discards the session's cart entirely.
	DeleteCurrentCart(ctx context.Context, accessToken string) error
}

// Checkouts converts a cart into a hosted checkout and produces the
// redirect URL the buyer must be sent to.
type Checkouts interface {
	// CreateCheckoutFromCart snapshots the current cart into a checkout
	// and returns its identifier.
	CreateCheckoutFromCart(ctx context.Context, accessToken, channelType string) (string, error)

	// CreateRedirectSession creates a hosted-checkout redirect session
	// for the checkout, with returnURL as the post-flow callback.
	CreateRedirectSession(ctx context.Context, accessToken, checkoutID, returnURL string) (*model.RedirectSession, error)
}

// Sessions issues and rotates anonymous visitor token pairs.
type Sessions interface {
	// AnonymousSession obtains a fresh visitor token pair.
	AnonymousSession(ctx context.Context) (session.Tokens, error)

	// RefreshSession exchanges a refresh token for a new pair.
	RefreshSession(ctx context.Context, refreshToken string) (session.Tokens, error)
}

// Client is the full remote commerce surface consumed by the gateway.
type Client interface {
	Catalog
	Carts
	Checkouts
	Sessions
}
