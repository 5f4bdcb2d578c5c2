package handler

import (
	"net/http"

	"storefront-gateway/internal/model"
)

// productsResponse is the JSON structure for product listings. ManageURL
// points store owners at the dashboard when the listing is empty.
type productsResponse struct {
	Products  []model.Product `json:"products"`
	ManageURL string          `json:"manage_url,omitempty"`
}

// productResponse wraps a single product.
type productResponse struct {
	Product model.Product `json:"product"`
}

// handleListProducts returns the whole catalog.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.listResponse(products))
}

// handleCollectionProducts returns the products of one collection. An
// unknown collection is an empty listing, not a 404; the page renders a
// "no products" state.
func (h *Handler) handleCollectionProducts(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	products, err := h.catalog.CollectionProducts(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.listResponse(products))
}

// handleGetProduct resolves one product by collection name and slug.
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	slug := r.PathValue("slug")

	product, err := h.catalog.FindProduct(r.Context(), name, slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if product == nil {
		h.writeError(w, model.NewNotFoundError("product"))
		return
	}
	h.writeJSON(w, http.StatusOK, productResponse{Product: *product})
}

// listResponse builds a listing payload, attaching the dashboard link on
// empty results so the store owner can add products.
func (h *Handler) listResponse(products []model.Product) productsResponse {
	resp := productsResponse{Products: products}
	if resp.Products == nil {
		resp.Products = []model.Product{}
	}
	if len(resp.Products) == 0 {
		resp.ManageURL = h.cfg.DashboardProductsURL()
	}
	return resp
}
