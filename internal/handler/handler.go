// Package handler provides HTTP handlers for the storefront gateway API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/catalog"
	"storefront-gateway/internal/checkout"
	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	commerce   commerce.Client
	catalog    catalog.Source
	carts      *cart.Registry
	redirector *checkout.Redirector
	cfg        *config.Config
	logger     *slog.Logger
}

// New creates a Handler wiring the commerce client, catalog source, cart
// registry, and checkout redirector.
func New(client commerce.Client, source catalog.Source, carts *cart.Registry, redirector *checkout.Redirector, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		commerce:   client,
		catalog:    source,
		carts:      carts,
		redirector: redirector,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog (public, no session needed)
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /collections/{name}/products", h.handleCollectionProducts)
	mux.HandleFunc("GET /collections/{name}/products/{slug}", h.handleGetProduct)

	// Cart operations bind to the visitor session cookie
	mux.HandleFunc("GET /cart", h.withSession(h.handleGetCart))
	mux.HandleFunc("PUT /cart", h.withSession(h.handleReplaceCart))
	mux.HandleFunc("DELETE /cart", h.withSession(h.handleClearCart))
	mux.HandleFunc("POST /cart/items", h.withSession(h.handleAddItem))
	mux.HandleFunc("PUT /cart/items/{id}", h.withSession(h.handleSetQuantity))
	mux.HandleFunc("DELETE /cart/items/{id}", h.withSession(h.handleRemoveItem))

	// Checkout handoff
	mux.HandleFunc("POST /checkout", h.withSession(h.handleCheckout))

	// Session rotation
	mux.HandleFunc("POST /session/refresh", h.handleRefreshSession)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// withSession ensures the request carries a visitor session. A missing or
// undecodable cookie gets a fresh anonymous token pair, written back as
// the session cookie, so the first cart interaction creates the session.
func (h *Handler) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens, ok := session.FromRequest(r)
		if !ok {
			var err error
			tokens, err = h.commerce.AnonymousSession(r.Context())
			if err != nil {
				h.writeError(w, err)
				return
			}
			session.Write(w, tokens, h.cfg.Environment == "production")
		}
		next(w, r.WithContext(session.NewContext(r.Context(), tokens)))
	}
}

// handleRefreshSession rotates the visitor's token pair. Without a valid
// session cookie a fresh anonymous session is issued instead; either way
// the response sets the new cookie.
func (h *Handler) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	var (
		tokens session.Tokens
		err    error
	)

	current, ok := session.FromRequest(r)
	if ok && current.Refresh != "" {
		tokens, err = h.commerce.RefreshSession(r.Context(), current.Refresh)
		if errors.Is(err, model.ErrUnauthorized) {
			// Refresh token revoked or expired; fall back to a new visitor.
			tokens, err = h.commerce.AnonymousSession(r.Context())
		}
	} else {
		tokens, err = h.commerce.AnonymousSession(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	session.Write(w, tokens, h.cfg.Environment == "production")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// handleHealth reports liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  h.cfg.Store.StoreName,
	})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	body := errorBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}
	// Plan-entitlement refusals carry the upgrade link so clients can
	// render the upgrade prompt instead of a bare failure.
	if errors.Is(err, model.ErrUpgradeRequired) {
		body.UpgradeURL = h.redirector.UpgradeURL()
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{Error: body})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
