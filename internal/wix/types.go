// Package wix implements the commerce client against the Wix Headless
// eCommerce and Stores APIs.
//
// Authentication uses OAuth2 with anonymous visitor tokens (grantType
// "anonymous"). No client_secret is needed, only the client_id. Access
// tokens expire after 4 hours (14400s); each token pair represents one
// visitor session and the cart tied to it. Catalog reads are public but
// still require a bearer token; the client maintains its own short-lived
// catalog token for those.
package wix

// StoresAppID is the Wix Stores application ID used in catalog references
// when adding products to a cart.
const StoresAppID = "1380b703-ce81-ff05-f115-39571d94dfcd"

// === OAuth2 Types ===

// OAuthTokenRequest is the request body for an anonymous visitor token.
type OAuthTokenRequest struct {
	ClientID  string `json:"clientId"`
	GrantType string `json:"grantType"` // Always "anonymous" for visitor sessions
}

// OAuthRefreshRequest exchanges a refresh token for a new pair.
type OAuthRefreshRequest struct {
	ClientID     string `json:"clientId"`
	GrantType    string `json:"grantType"` // "refresh_token"
	RefreshToken string `json:"refreshToken"`
}

// OAuthTokenResponse contains the OAuth2 token pair from Wix.
type OAuthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int    `json:"expires_in"` // 14400 (4 hours)
	RefreshToken string `json:"refresh_token"`
}

// === Stores Catalog Types ===

// WixProduct is a product as returned by the Stores query API.
type WixProduct struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Description        string             `json:"description,omitempty"`
	PriceData          *WixPriceData      `json:"priceData,omitempty"`
	ConvertedPriceData *WixPriceData      `json:"convertedPriceData,omitempty"`
	ProductOptions     []WixProductOption `json:"productOptions,omitempty"`
	CollectionIDs      []string           `json:"collectionIds,omitempty"`
}

// WixPriceData contains catalog pricing for a product.
type WixPriceData struct {
	Currency  string             `json:"currency,omitempty"`
	Price     float64            `json:"price,omitempty"`
	Formatted *WixFormattedPrice `json:"formatted,omitempty"`
}

// WixFormattedPrice contains display-formatted price strings.
type WixFormattedPrice struct {
	Price           string `json:"price,omitempty"`
	DiscountedPrice string `json:"discountedPrice,omitempty"`
}

// WixProductOption is a selectable product option with ordered choices.
type WixProductOption struct {
	Name    string            `json:"name"`
	Choices []WixOptionChoice `json:"choices,omitempty"`
}

// WixOptionChoice is one choice of a product option.
type WixOptionChoice struct {
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// WixCollection is a named product grouping.
type WixCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WixProductQueryRequest is the body for the product query endpoint.
type WixProductQueryRequest struct {
	Query WixQuery `json:"query"`
}

// WixCollectionQueryRequest is the body for the collection query endpoint.
type WixCollectionQueryRequest struct {
	Query WixQuery `json:"query"`
}

// WixQuery holds paging and an optional serialized filter expression.
type WixQuery struct {
	Paging WixPaging `json:"paging"`
	Filter string    `json:"filter,omitempty"`
}

// WixPaging is offset-based paging for catalog queries.
type WixPaging struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset,omitempty"`
}

// WixProductQueryResponse wraps product query results.
type WixProductQueryResponse struct {
	Products     []WixProduct `json:"products"`
	Metadata     *WixMetadata `json:"metadata,omitempty"`
	TotalResults int          `json:"totalResults"`
}

// WixCollectionQueryResponse wraps collection query results.
type WixCollectionQueryResponse struct {
	Collections  []WixCollection `json:"collections"`
	TotalResults int             `json:"totalResults"`
}

// WixMetadata echoes the paging of a query response.
type WixMetadata struct {
	Items  int `json:"items"`
	Offset int `json:"offset"`
}

// === eCommerce Cart Types ===

// WixCart represents the visitor's current cart.
type WixCart struct {
	ID        string        `json:"id"`
	LineItems []WixLineItem `json:"lineItems"`
	Currency  string        `json:"currency,omitempty"`
	Subtotal  *WixPrice     `json:"subtotal,omitempty"`
}

// WixLineItem is an item in a cart.
type WixLineItem struct {
	ID               string          `json:"id,omitempty"`
	CatalogReference *WixCatalogRef  `json:"catalogReference"`
	Quantity         int             `json:"quantity"`
	ProductName      *WixProductName `json:"productName,omitempty"`
	Price            *WixPrice       `json:"price,omitempty"`
}

// WixCatalogRef identifies a product in the catalog, optionally carrying
// the selected option choices.
type WixCatalogRef struct {
	CatalogItemID string                `json:"catalogItemId"`
	AppID         string                `json:"appId"`
	Options       *WixCatalogRefOptions `json:"options,omitempty"`
}

// WixCatalogRefOptions nests the option selection the way the eCommerce
// API expects: {"options": {"Size": "Large"}}.
type WixCatalogRefOptions struct {
	Options map[string]string `json:"options,omitempty"`
}

// WixProductName contains the localized product name.
type WixProductName struct {
	Original   string `json:"original,omitempty"`
	Translated string `json:"translated,omitempty"`
}

// WixPrice contains a price amount. Amounts are decimal strings.
type WixPrice struct {
	Amount          string `json:"amount"`
	ConvertedAmount string `json:"convertedAmount,omitempty"`
	FormattedAmount string `json:"formattedAmount,omitempty"`
}

// === Cart Mutation Requests ===

// WixAddToCartRequest adds items to the current cart.
type WixAddToCartRequest struct {
	LineItems []WixLineItemInput `json:"lineItems"`
}

// WixLineItemInput is a line item being added to a cart.
type WixLineItemInput struct {
	CatalogReference *WixCatalogRef `json:"catalogReference"`
	Quantity         int            `json:"quantity"`
}

// WixUpdateQuantityRequest updates quantities of existing line items.
type WixUpdateQuantityRequest struct {
	LineItems []WixQuantityUpdate `json:"lineItems"`
}

// WixQuantityUpdate sets a new quantity for one line item.
type WixQuantityUpdate struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// WixRemoveLineItemsRequest removes line items by ID.
type WixRemoveLineItemsRequest struct {
	LineItemIDs []string `json:"lineItemIds"`
}

// === Checkout & Redirect Types ===

// WixCreateCheckoutRequest snapshots the current cart into a checkout.
type WixCreateCheckoutRequest struct {
	ChannelType string `json:"channelType"`
}

// WixCreateCheckoutResponse carries the new checkout's identifier.
type WixCreateCheckoutResponse struct {
	CheckoutID string `json:"checkoutId"`
}

// WixCreateRedirectRequest creates a hosted-checkout redirect session.
type WixCreateRedirectRequest struct {
	EcomCheckout *WixEcomCheckoutRef `json:"ecomCheckout"`
	Callbacks    *WixCallbacks       `json:"callbacks,omitempty"`
}

// WixEcomCheckoutRef references a checkout for redirect.
type WixEcomCheckoutRef struct {
	CheckoutID string `json:"checkoutId"`
}

// WixCallbacks contains redirect callback URLs.
type WixCallbacks struct {
	PostFlowURL     string `json:"postFlowUrl,omitempty"`
	ThankYouPageURL string `json:"thankYouPageUrl,omitempty"`
}

// WixRedirectSession is the hosted checkout handoff target.
type WixRedirectSession struct {
	ID      string `json:"id,omitempty"`
	FullURL string `json:"fullUrl"`
}

// === Response Wrappers ===

// WixCartResponse wraps cart API responses.
type WixCartResponse struct {
	Cart *WixCart `json:"cart"`
}

// WixRedirectResponse wraps redirect session responses.
type WixRedirectResponse struct {
	RedirectSession *WixRedirectSession `json:"redirectSession"`
}

// WixErrorResponse represents a Wix API error body.
type WixErrorResponse struct {
	Message string           `json:"message"`
	Details *WixErrorDetails `json:"details,omitempty"`
}

// WixErrorDetails contains additional error information.
type WixErrorDetails struct {
	ApplicationError *WixApplicationError `json:"applicationError,omitempty"`
}

// WixApplicationError contains Wix-specific error codes.
type WixApplicationError struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}
