package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/checkout"
	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
)

// fakeCommerce is an in-memory commerce.Client for handler tests.
type fakeCommerce struct {
	cart        *model.Cart
	nextLine    int
	anonCalls   int
	checkoutErr error
	lastAdd     []commerce.LineItemInput
}

func (f *fakeCommerce) QueryProducts(ctx context.Context, filter model.ProductFilter, cursor string) (*model.ProductPage, error) {
	return &model.ProductPage{Items: []model.Product{}}, nil
}

func (f *fakeCommerce) QueryCollections(ctx context.Context) ([]model.Collection, error) {
	return nil, nil
}

func (f *fakeCommerce) snapshot() *model.Cart {
	c := *f.cart
	c.LineItems = append([]model.LineItem(nil), f.cart.LineItems...)
	return &c
}

func (f *fakeCommerce) GetCurrentCart(ctx context.Context, token string) (*model.Cart, error) {
	if f.cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	return f.snapshot(), nil
}

func (f *fakeCommerce) AddToCurrentCart(ctx context.Context, token string, items []commerce.LineItemInput) (*model.Cart, error) {
	f.lastAdd = items
	if f.cart == nil {
		f.cart = &model.Cart{ID: "cart-1", LineItems: []model.LineItem{}}
	}
	for _, item := range items {
		f.nextLine++
		f.cart.LineItems = append(f.cart.LineItems, model.LineItem{
			ID:            fmt.Sprintf("line-%d", f.nextLine),
			CatalogItemID: item.CatalogItemID,
			Quantity:      item.Quantity,
		})
	}
	return f.snapshot(), nil
}

func (f *fakeCommerce) UpdateLineItemQuantity(ctx context.Context, token, lineItemID string, quantity int) (*model.Cart, error) {
	for i := range f.cart.LineItems {
		if f.cart.LineItems[i].ID == lineItemID {
			f.cart.LineItems[i].Quantity = quantity
			return f.snapshot(), nil
		}
	}
	return nil, model.NewNotFoundError("line item")
}

func (f *fakeCommerce) RemoveLineItem(ctx context.Context, token, lineItemID string) error {
	kept := f.cart.LineItems[:0]
	for _, li := range f.cart.LineItems {
		if li.ID != lineItemID {
			kept = append(kept, li)
		}
	}
	f.cart.LineItems = kept
	return nil
}

func (f *fakeCommerce) DeleteCurrentCart(ctx context.Context, token string) error {
	f.cart = nil
	return nil
}

func (f *fakeCommerce) CreateCheckoutFromCart(ctx context.Context, token, channelType string) (string, error) {
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return "checkout-1", nil
}

func (f *fakeCommerce) CreateRedirectSession(ctx context.Context, token, checkoutID, returnURL string) (*model.RedirectSession, error) {
	return &model.RedirectSession{
		CheckoutID: checkoutID,
		URL:        "https://checkout.example.com/" + checkoutID,
	}, nil
}

func (f *fakeCommerce) AnonymousSession(ctx context.Context) (session.Tokens, error) {
	f.anonCalls++
	return session.Tokens{
		Access:  fmt.Sprintf("anon-access-%d", f.anonCalls),
		Refresh: "anon-refresh",
	}, nil
}

func (f *fakeCommerce) RefreshSession(ctx context.Context, refreshToken string) (session.Tokens, error) {
	return session.Tokens{Access: "refreshed-access", Refresh: "refreshed-refresh"}, nil
}

// fakeSource is a fixed catalog.Source.
type fakeSource struct {
	products []model.Product
	err      error
}

func (f *fakeSource) ListProducts(ctx context.Context) ([]model.Product, error) {
	return f.products, f.err
}

func (f *fakeSource) CollectionProducts(ctx context.Context, collection string) ([]model.Product, error) {
	return f.products, f.err
}

func (f *fakeSource) FindProduct(ctx context.Context, collection, slug string) (*model.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.products {
		if strings.EqualFold(f.products[i].Slug, slug) {
			return &f.products[i], nil
		}
	}
	return nil, nil
}

func newTestServer(t *testing.T, fc *fakeCommerce, source *fakeSource) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Environment: "development",
		Store: config.StoreConfig{
			ClientID: "client-1",
			SiteID:   "site-guid-1",
			StoreURL: "https://store.example.com",
		},
	}

	carts := cart.NewRegistry(fc, logger)
	redirector := checkout.NewRedirector(fc, cfg.Store.SiteID, logger)
	h := New(fc, source, carts, redirector, cfg, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, cookies []*http.Cookie) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
	}
	return resp, decoded
}

func sessionCookies(resp *http.Response) []*http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return []*http.Cookie{c}
		}
	}
	return nil
}

func TestListProducts(t *testing.T) {
	source := &fakeSource{products: []model.Product{
		{ID: "p-1", Name: "Widget", Slug: "widget", Price: "$10.00"},
	}}
	srv := newTestServer(t, &fakeCommerce{}, source)

	resp, body := doJSON(t, "GET", srv.URL+"/products", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	products := body["products"].([]interface{})
	if len(products) != 1 {
		t.Errorf("products = %d, want 1", len(products))
	}
	if _, ok := body["manage_url"]; ok {
		t.Error("manage_url should be absent on a non-empty listing")
	}
}

func TestEmptyListingCarriesManageURL(t *testing.T) {
	srv := newTestServer(t, &fakeCommerce{}, &fakeSource{products: []model.Product{}})

	resp, body := doJSON(t, "GET", srv.URL+"/collections/dynamo/products", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for unknown collections", resp.StatusCode)
	}

	manageURL, _ := body["manage_url"].(string)
	if !strings.Contains(manageURL, "site-guid-1") {
		t.Errorf("manage_url = %q, want dashboard link with site GUID", manageURL)
	}
}

func TestGetProductNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeCommerce{}, &fakeSource{})

	resp, body := doJSON(t, "GET", srv.URL+"/collections/dynamo/products/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	errBody := body["error"].(map[string]interface{})
	if errBody["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", errBody["code"])
	}
}

func TestGetCartIssuesSessionCookie(t *testing.T) {
	fc := &fakeCommerce{}
	srv := newTestServer(t, fc, &fakeSource{})

	resp, body := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if fc.anonCalls != 1 {
		t.Errorf("anonymous sessions issued = %d, want 1", fc.anonCalls)
	}
	if sessionCookies(resp) == nil {
		t.Fatal("first cart request should set the session cookie")
	}

	cartBody := body["cart"].(map[string]interface{})
	items := cartBody["line_items"].([]interface{})
	if len(items) != 0 {
		t.Errorf("line items = %d, want 0", len(items))
	}
}

func TestCartFlow(t *testing.T) {
	fc := &fakeCommerce{}
	srv := newTestServer(t, fc, &fakeSource{})

	// First touch creates the session.
	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)
	if cookies == nil {
		t.Fatal("no session cookie")
	}

	// Add an item.
	resp, body := doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"catalog_item_id": "prod-a",
		"quantity":        2,
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d: %v", resp.StatusCode, body)
	}

	cartBody := body["cart"].(map[string]interface{})
	items := cartBody["line_items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("line items = %d, want 1", len(items))
	}
	lineID := items[0].(map[string]interface{})["id"].(string)

	// Adding the same product merges instead of duplicating.
	resp, body = doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"catalog_item_id": "prod-a",
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("merge add status = %d", resp.StatusCode)
	}
	items = body["cart"].(map[string]interface{})["line_items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("line items after merge = %d, want 1", len(items))
	}
	if qty := items[0].(map[string]interface{})["quantity"].(float64); qty != 3 {
		t.Errorf("quantity = %v, want 3", qty)
	}

	// Set the quantity to zero: the line disappears.
	resp, body = doJSON(t, "PUT", srv.URL+"/cart/items/"+lineID, map[string]interface{}{
		"quantity": 0,
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set-quantity status = %d", resp.StatusCode)
	}
	items = body["cart"].(map[string]interface{})["line_items"].([]interface{})
	if len(items) != 0 {
		t.Errorf("line items after zero quantity = %d, want 0", len(items))
	}
}

func TestAddItemBySlug(t *testing.T) {
	fc := &fakeCommerce{}
	source := &fakeSource{products: []model.Product{{
		ID:   "prod-a",
		Name: "Widget",
		Slug: "widget",
		Options: []model.ProductOption{
			{Name: "Size", Choices: []string{"S", "M", "L"}},
			{Name: "Color", Choices: []string{"Black", "White"}},
		},
	}}}
	srv := newTestServer(t, fc, source)

	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)

	resp, body := doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"collection": "dynamo",
		"slug":       "widget",
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d: %v", resp.StatusCode, body)
	}

	items := body["cart"].(map[string]interface{})["line_items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("line items = %d, want 1", len(items))
	}
	if got := items[0].(map[string]interface{})["catalog_item_id"]; got != "prod-a" {
		t.Errorf("catalog_item_id = %v, want prod-a", got)
	}

	// The first choice of every option is selected by default.
	if len(fc.lastAdd) != 1 {
		t.Fatalf("add inputs = %d, want 1", len(fc.lastAdd))
	}
	want := map[string]string{"Size": "S", "Color": "Black"}
	got := fc.lastAdd[0].Options
	if len(got) != len(want) {
		t.Fatalf("options = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("option %s = %q, want %q", k, got[k], v)
		}
	}

	// Unknown slug is a 404, nothing added.
	resp, _ = doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"collection": "dynamo",
		"slug":       "missing",
	}, cookies)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown slug status = %d, want 404", resp.StatusCode)
	}

	// Neither catalog ID nor collection+slug is a 400.
	resp, _ = doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"quantity": 1,
	}, cookies)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing identifiers status = %d, want 400", resp.StatusCode)
	}
}

func TestReplaceCart(t *testing.T) {
	fc := &fakeCommerce{}
	srv := newTestServer(t, fc, &fakeSource{})

	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)

	resp, body := doJSON(t, "PUT", srv.URL+"/cart", map[string]interface{}{
		"line_items": []map[string]interface{}{
			{"catalog_item_id": "prod-a", "quantity": 2},
			{"catalog_item_id": "prod-b", "quantity": 1},
		},
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace status = %d: %v", resp.StatusCode, body)
	}
	items := body["cart"].(map[string]interface{})["line_items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("line items = %d, want 2", len(items))
	}

	// Invalid desired state is rejected with 400.
	resp, _ = doJSON(t, "PUT", srv.URL+"/cart", map[string]interface{}{
		"line_items": []map[string]interface{}{
			{"catalog_item_id": "prod-a", "quantity": 0},
		},
	}, cookies)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid replace status = %d, want 400", resp.StatusCode)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	srv := newTestServer(t, &fakeCommerce{}, &fakeSource{})

	resp, body := doJSON(t, "POST", srv.URL+"/checkout", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %v", resp.StatusCode, body)
	}
}

func TestCheckoutSuccess(t *testing.T) {
	fc := &fakeCommerce{}
	srv := newTestServer(t, fc, &fakeSource{})

	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)
	resp, _ = doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"catalog_item_id": "prod-a",
	}, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, "POST", srv.URL+"/checkout", nil, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout status = %d: %v", resp.StatusCode, body)
	}
	if body["redirect_url"] != "https://checkout.example.com/checkout-1" {
		t.Errorf("redirect_url = %v", body["redirect_url"])
	}
}

func TestCheckoutUpgradeRequired(t *testing.T) {
	fc := &fakeCommerce{checkoutErr: model.NewUpgradeRequiredError("free plan")}
	srv := newTestServer(t, fc, &fakeSource{})

	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)
	doJSON(t, "POST", srv.URL+"/cart/items", map[string]interface{}{
		"catalog_item_id": "prod-a",
	}, cookies)

	resp, body := doJSON(t, "POST", srv.URL+"/checkout", nil, cookies)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %v", resp.StatusCode, body)
	}

	errBody := body["error"].(map[string]interface{})
	if errBody["code"] != "UPGRADE_REQUIRED" {
		t.Errorf("code = %v, want UPGRADE_REQUIRED", errBody["code"])
	}
	upgradeURL, _ := errBody["upgrade_url"].(string)
	if !strings.Contains(upgradeURL, "site-guid-1") {
		t.Errorf("upgrade_url = %q, want premium link with site GUID", upgradeURL)
	}
}

func TestCheckoutInvalidReturnURL(t *testing.T) {
	srv := newTestServer(t, &fakeCommerce{}, &fakeSource{})

	resp, _ := doJSON(t, "POST", srv.URL+"/checkout", map[string]interface{}{
		"return_url": "not a url",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionRefresh(t *testing.T) {
	fc := &fakeCommerce{}
	srv := newTestServer(t, fc, &fakeSource{})

	resp, _ := doJSON(t, "GET", srv.URL+"/cart", nil, nil)
	cookies := sessionCookies(resp)

	resp, _ = doJSON(t, "POST", srv.URL+"/session/refresh", nil, cookies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	refreshed := sessionCookies(resp)
	if refreshed == nil {
		t.Fatal("refresh should set a new session cookie")
	}
	if refreshed[0].Value == cookies[0].Value {
		t.Error("refreshed cookie should differ from the original")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeCommerce{}, &fakeSource{})

	resp, body := doJSON(t, "GET", srv.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestUpstreamCatalogFailure(t *testing.T) {
	source := &fakeSource{err: model.NewUpstreamError("Wix", fmt.Errorf("boom"))}
	srv := newTestServer(t, &fakeCommerce{}, source)

	resp, body := doJSON(t, "GET", srv.URL+"/products", nil, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	errBody := body["error"].(map[string]interface{})
	if errBody["code"] != "UPSTREAM_ERROR" {
		t.Errorf("code = %v, want UPSTREAM_ERROR", errBody["code"])
	}
}
