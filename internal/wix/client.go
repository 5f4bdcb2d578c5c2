package wix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/transport"
)

const (
	// apiBaseURL is the base URL for all Wix APIs.
	apiBaseURL = "https://www.wixapis.com"

	// API paths
	pathOAuthToken      = "/oauth2/token"
	pathProductQuery    = "/stores/v1/products/query"
	pathCollectionQuery = "/stores/v1/collections/query"
	pathCartCurrent     = "/ecom/v1/carts/current"
	pathAddToCart       = "/ecom/v1/carts/current/add-to-cart"
	pathUpdateQuantity  = "/ecom/v1/carts/current/update-line-items-quantity"
	pathRemoveLineItems = "/ecom/v1/carts/current/remove-line-items"
	pathCreateCheckout  = "/ecom/v1/carts/current/create-checkout"
	pathRedirectSession = "/redirect-session/v1/redirect-session"

	userAgent = "storefront-gateway/1.0"

	// queryPageSize is the page size requested from catalog queries.
	queryPageSize = 100

	// requestTimeout bounds every upstream call. The platform publishes
	// no timeout contract; expiry surfaces as a recoverable upstream error.
	requestTimeout = 30 * time.Second
)

// Client is the Wix API HTTP client. It implements commerce.Client.
//
// Cart, checkout, and redirect calls take the visitor's access token.
// Catalog queries are public; the client maintains its own anonymous
// token for them and renews it before expiry.
type Client struct {
	httpClient *http.Client
	clientID   string
	breaker    *gobreaker.CircuitBreaker[*http.Response]

	mu            sync.Mutex // guards catalogToken/catalogExpiry
	catalogToken  string
	catalogExpiry time.Time
}

// NewClient creates a Wix API client for the given OAuth app client ID.
func NewClient(clientID string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(transport.NewBrowserTransport(requestTimeout)),
		},
		clientID: clientID,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "wix",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// === Visitor Sessions ===

// AnonymousSession obtains a fresh anonymous visitor token pair.
// Each pair represents a unique visitor session tied to cart state.
func (c *Client) AnonymousSession(ctx context.Context) (session.Tokens, error) {
	resp, err := c.requestToken(ctx, &OAuthTokenRequest{
		ClientID:  c.clientID,
		GrantType: "anonymous",
	})
	if err != nil {
		return session.Tokens{}, fmt.Errorf("getting anonymous token: %w", err)
	}
	return session.Tokens{Access: resp.AccessToken, Refresh: resp.RefreshToken}, nil
}

// RefreshSession exchanges a refresh token for a new token pair.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (session.Tokens, error) {
	resp, err := c.requestToken(ctx, &OAuthRefreshRequest{
		ClientID:     c.clientID,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if err != nil {
		return session.Tokens{}, fmt.Errorf("refreshing token: %w", err)
	}
	return session.Tokens{Access: resp.AccessToken, Refresh: resp.RefreshToken}, nil
}

// requestToken calls the OAuth token endpoint. Separate from newRequest
// since the token endpoint takes no auth header.
func (c *Client) requestToken(ctx context.Context, body interface{}) (*OAuthTokenResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBaseURL+pathOAuthToken, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	var resp OAuthTokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, model.NewUnauthorizedError("empty access token from OAuth")
	}
	return &resp, nil
}

// catalogAccessToken returns a valid access token for public catalog
// reads, renewing the cached one a minute before it expires.
func (c *Client) catalogAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalogToken != "" && time.Now().Before(c.catalogExpiry.Add(-time.Minute)) {
		return c.catalogToken, nil
	}

	resp, err := c.requestToken(ctx, &OAuthTokenRequest{
		ClientID:  c.clientID,
		GrantType: "anonymous",
	})
	if err != nil {
		return "", fmt.Errorf("getting catalog token: %w", err)
	}

	c.catalogToken = resp.AccessToken
	c.catalogExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.catalogToken, nil
}

// === Catalog Queries ===

// QueryProducts returns one page of products matching the filter.
// The cursor is an opaque continuation token from a previous page.
func (c *Client) QueryProducts(ctx context.Context, filter model.ProductFilter, cursor string) (*model.ProductPage, error) {
	token, err := c.catalogAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, model.NewValidationError("cursor", err.Error())
	}

	body := &WixProductQueryRequest{
		Query: WixQuery{
			Paging: WixPaging{Limit: queryPageSize, Offset: offset},
			Filter: collectionFilter(filter.CollectionID),
		},
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathProductQuery, body, token)
	if err != nil {
		return nil, fmt.Errorf("creating product query request: %w", err)
	}

	var resp WixProductQueryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	page := &model.ProductPage{Items: ProductsToModel(resp.Products)}
	next := offset + len(resp.Products)
	if len(resp.Products) > 0 && next < resp.TotalResults {
		page.NextCursor = encodeCursor(next)
	}
	return page, nil
}

// QueryCollections lists all collections.
func (c *Client) QueryCollections(ctx context.Context) ([]model.Collection, error) {
	token, err := c.catalogAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body := &WixCollectionQueryRequest{
		Query: WixQuery{Paging: WixPaging{Limit: queryPageSize}},
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathCollectionQuery, body, token)
	if err != nil {
		return nil, fmt.Errorf("creating collection query request: %w", err)
	}

	var resp WixCollectionQueryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	return CollectionsToModel(resp.Collections), nil
}

// collectionFilter builds the serialized filter expression restricting a
// product query to members of one collection. Empty ID means no filter.
func collectionFilter(collectionID string) string {
	if collectionID == "" {
		return ""
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"collections.id": map[string]interface{}{"$hasSome": []string{collectionID}},
	})
	return string(raw)
}

// Cursors are stringified result offsets. Opaque to callers.

func encodeCursor(offset int) string {
	return strconv.Itoa(offset)
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, errors.New("malformed continuation token")
	}
	return offset, nil
}

// === Cart Operations ===

// GetCurrentCart retrieves the current cart for the visitor session.
func (c *Client) GetCurrentCart(ctx context.Context, accessToken string) (*model.Cart, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathCartCurrent, nil, accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating cart request: %w", err)
	}

	var resp WixCartResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return CartToModel(resp.Cart), nil
}

// AddToCurrentCart adds line items to the current cart, creating it if
// it doesn't exist yet, and returns the updated cart.
func (c *Client) AddToCurrentCart(ctx context.Context, accessToken string, items []commerce.LineItemInput) (*model.Cart, error) {
	body := &WixAddToCartRequest{LineItems: LineItemInputsToWix(items)}

	req, err := c.newRequest(ctx, http.MethodPost, pathAddToCart, body, accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating add-to-cart request: %w", err)
	}

	var resp WixCartResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return CartToModel(resp.Cart), nil
}

// UpdateLineItemQuantity sets a line item's quantity and returns the
// updated cart.
func (c *Client) UpdateLineItemQuantity(ctx context.Context, accessToken, lineItemID string, quantity int) (*model.Cart, error) {
	body := &WixUpdateQuantityRequest{
		LineItems: []WixQuantityUpdate{{ID: lineItemID, Quantity: quantity}},
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUpdateQuantity, body, accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating update-quantity request: %w", err)
	}

	var resp WixCartResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return CartToModel(resp.Cart), nil
}

// RemoveLineItem removes a line item from the current cart. The response
// body is discarded; callers refetch the cart afterwards so the mirror
// always reflects server state.
func (c *Client) RemoveLineItem(ctx context.Context, accessToken, lineItemID string) error {
	body := &WixRemoveLineItemsRequest{LineItemIDs: []string{lineItemID}}

	req, err := c.newRequest(ctx, http.MethodPost, pathRemoveLineItems, body, accessToken)
	if err != nil {
		return fmt.Errorf("creating remove-line-items request: %w", err)
	}
	return c.do(req, nil)
}

// DeleteCurrentCart discards the visitor's cart entirely.
func (c *Client) DeleteCurrentCart(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, pathCartCurrent, nil, accessToken)
	if err != nil {
		return fmt.Errorf("creating delete-cart request: %w", err)
	}
	return c.do(req, nil)
}

// === Checkout & Redirect ===

// CreateCheckoutFromCart snapshots the current cart into a checkout and
// returns the checkout ID.
func (c *Client) CreateCheckoutFromCart(ctx context.Context, accessToken, channelType string) (string, error) {
	body := &WixCreateCheckoutRequest{ChannelType: channelType}

	req, err := c.newRequest(ctx, http.MethodPost, pathCreateCheckout, body, accessToken)
	if err != nil {
		return "", fmt.Errorf("creating checkout request: %w", err)
	}

	var resp WixCreateCheckoutResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.CheckoutID == "" {
		return "", model.NewUpstreamError("Wix", errors.New("empty checkout ID from create-checkout"))
	}
	return resp.CheckoutID, nil
}

// CreateRedirectSession creates a redirect session for the hosted
// checkout. Returns the URL the buyer should be directed to.
func (c *Client) CreateRedirectSession(ctx context.Context, accessToken, checkoutID, returnURL string) (*model.RedirectSession, error) {
	body := &WixCreateRedirectRequest{
		EcomCheckout: &WixEcomCheckoutRef{CheckoutID: checkoutID},
		Callbacks:    &WixCallbacks{PostFlowURL: returnURL},
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathRedirectSession, body, accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating redirect session request: %w", err)
	}

	var resp WixRedirectResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.RedirectSession == nil || resp.RedirectSession.FullURL == "" {
		return nil, model.NewUpstreamError("Wix", errors.New("empty redirect session URL"))
	}
	return &model.RedirectSession{CheckoutID: checkoutID, URL: resp.RedirectSession.FullURL}, nil
}

// === HTTP Helpers ===

// newRequest creates an HTTP request with OAuth Bearer token authentication.
func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}, accessToken string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return req, nil
}

// do executes the request through the circuit breaker and decodes the
// response. Transport-level failures count toward tripping the breaker;
// HTTP error statuses do not.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.NewUpstreamError("Wix", fmt.Errorf("circuit open: %w", err))
		}
		return model.NewUpstreamError("Wix", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.parseError(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}

	return nil
}

// parseError converts Wix API errors to model.APIError.
func (c *Client) parseError(statusCode int, body []byte) error {
	var wixErr WixErrorResponse
	json.Unmarshal(body, &wixErr) // Best effort parse

	code := ""
	if wixErr.Details != nil && wixErr.Details.ApplicationError != nil {
		code = wixErr.Details.ApplicationError.Code
	}

	switch statusCode {
	case 401:
		return model.NewUnauthorizedError("Wix authentication failed")
	case 403:
		// Free-tier sites cannot create hosted checkout sessions; the
		// platform rejects with 403. Surface as an entitlement failure
		// so callers can offer the upgrade flow.
		return model.NewUpgradeRequiredError("operation requires an upgraded site plan")
	case 404:
		return model.NewNotFoundError("resource")
	case 429:
		return model.NewRateLimitError("Wix")
	case 400:
		msg := wixErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		if code != "" {
			msg = code + ": " + msg
		}
		return model.NewValidationError("request", msg)
	default:
		return model.NewUpstreamError("Wix",
			fmt.Errorf("status %d: %s", statusCode, wixErr.Message))
	}
}
