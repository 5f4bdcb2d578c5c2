package handler

import (
	"net/http"
	"net/url"

	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
)

// checkoutRequest is the body for POST /checkout. ReturnURL is where the
// buyer lands after finishing or abandoning the hosted checkout; empty
// falls back to the storefront URL.
type checkoutRequest struct {
	ReturnURL string `json:"return_url,omitempty"`
}

// handleCheckout snapshots the session's cart into a hosted checkout and
// returns the redirect URL. An empty cart is rejected before the platform
// is called; a plan-entitlement refusal comes back as 402 with the
// upgrade URL in the body.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	returnURL := h.cfg.ReturnURL()
	if req.ReturnURL != "" {
		u, err := url.Parse(req.ReturnURL)
		if err != nil || !u.IsAbs() {
			h.writeError(w, model.NewValidationError("return_url", "must be an absolute URL"))
			return
		}
		returnURL = req.ReturnURL
	}

	tokens, _ := session.FromContext(r.Context())
	sync := h.carts.ForSession(tokens.Access)

	c, err := sync.Cart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.redirector.Begin(r.Context(), tokens.Access, c, returnURL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
