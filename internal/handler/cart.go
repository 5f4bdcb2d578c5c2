package handler

import (
	"net/http"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/session"
)

// cartResponse wraps cart API responses.
type cartResponse struct {
	Cart *model.Cart `json:"cart"`
}

// addItemRequest is the body for POST /cart/items. The product is named
// either directly by catalog ID or by collection + slug.
type addItemRequest struct {
	CatalogItemID string            `json:"catalog_item_id"`
	Collection    string            `json:"collection"`
	Slug          string            `json:"slug"`
	Quantity      int               `json:"quantity"`
	Options       map[string]string `json:"options,omitempty"`
}

// setQuantityRequest is the body for PUT /cart/items/{id}.
type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// replaceCartRequest is the body for PUT /cart: the complete desired
// line item list.
type replaceCartRequest struct {
	LineItems []replaceLineItem `json:"line_items"`
}

type replaceLineItem struct {
	CatalogItemID string            `json:"catalog_item_id"`
	Quantity      int               `json:"quantity"`
	Options       map[string]string `json:"options,omitempty"`
}

// sync returns the session's cart synchronizer. withSession guarantees
// tokens are present.
func (h *Handler) sync(r *http.Request) *cart.Synchronizer {
	tokens, _ := session.FromContext(r.Context())
	return h.carts.ForSession(tokens.Access)
}

// handleGetCart returns the session's cart, empty if none exists yet.
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sync(r).Cart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// handleAddItem adds a product to the cart. Quantity defaults to one;
// adding a product already in the cart raises the existing line's
// quantity instead of duplicating it.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if req.CatalogItemID == "" {
		if req.Collection == "" || req.Slug == "" {
			h.writeError(w, model.NewValidationError("catalog_item_id", "required unless collection and slug are given"))
			return
		}
		product, err := h.catalog.FindProduct(r.Context(), req.Collection, req.Slug)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if product == nil {
			h.writeError(w, model.NewNotFoundError("product"))
			return
		}
		req.CatalogItemID = product.ID
		if req.Options == nil {
			req.Options = product.DefaultSelections()
		}
	}

	c, err := h.sync(r).AddItem(r.Context(), req.CatalogItemID, req.Quantity, req.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// handleSetQuantity sets a line item's quantity. Zero removes the line.
func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	c, err := h.sync(r).SetQuantity(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// handleRemoveItem removes a line item from the cart.
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.sync(r).RemoveItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// handleReplaceCart moves the cart to exactly the requested line item
// list (declarative PUT semantics).
func (h *Handler) handleReplaceCart(w http.ResponseWriter, r *http.Request) {
	var req replaceCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	desired := make([]cart.DesiredItem, len(req.LineItems))
	for i, li := range req.LineItems {
		desired[i] = cart.DesiredItem{
			CatalogItemID: li.CatalogItemID,
			Quantity:      li.Quantity,
			Options:       li.Options,
		}
	}

	c, err := h.sync(r).Replace(r.Context(), desired)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// handleClearCart discards the cart entirely.
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.sync(r).Clear(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}
