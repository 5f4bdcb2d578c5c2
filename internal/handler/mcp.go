// MCP transport handler for the storefront gateway using the official
// MCP Go SDK. Exposes catalog, cart, and checkout operations as tools.
//
// MCP callers have no cookie jar, so the visitor session is explicit:
// cart and checkout tools accept a session_token and every cart-touching
// result echoes the token back. A call without a token gets a fresh
// anonymous session, whose token the caller must reuse to stay on the
// same cart.
package handler

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/model"
)

// === MCP Tool Input/Output Types ===

// ListProductsInput is the input schema for list_products.
type ListProductsInput struct{}

// ListCollectionProductsInput is the input schema for list_collection_products.
type ListCollectionProductsInput struct {
	Collection string `json:"collection" jsonschema:"collection name,required"`
}

// GetProductInput is the input schema for get_product.
type GetProductInput struct {
	Collection string `json:"collection" jsonschema:"collection name,required"`
	Slug       string `json:"slug" jsonschema:"product slug,required"`
}

// SessionInput carries the visitor session token for cart operations.
type SessionInput struct {
	SessionToken string `json:"session_token,omitempty" jsonschema:"visitor session token from a previous cart result"`
}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	SessionInput
	CatalogItemID string            `json:"catalog_item_id" jsonschema:"product catalog ID,required"`
	Quantity      int               `json:"quantity,omitempty" jsonschema:"quantity to add, default 1"`
	Options       map[string]string `json:"options,omitempty" jsonschema:"selected option choices"`
}

// SetQuantityInput is the input schema for set_quantity.
type SetQuantityInput struct {
	SessionInput
	LineItemID string `json:"line_item_id" jsonschema:"cart line item ID,required"`
	Quantity   int    `json:"quantity" jsonschema:"new quantity, zero removes the line,required"`
}

// ReplaceCartInput is the input schema for replace_cart. Full PUT
// semantics: the cart becomes exactly this line item list.
type ReplaceCartInput struct {
	SessionInput
	LineItems []ReplaceCartLine `json:"line_items" jsonschema:"complete desired line items,required"`
}

// ReplaceCartLine is one desired line of replace_cart.
type ReplaceCartLine struct {
	CatalogItemID string            `json:"catalog_item_id" jsonschema:"product catalog ID,required"`
	Quantity      int               `json:"quantity" jsonschema:"desired quantity,required"`
	Options       map[string]string `json:"options,omitempty" jsonschema:"selected option choices"`
}

// BeginCheckoutInput is the input schema for begin_checkout.
type BeginCheckoutInput struct {
	SessionInput
	ReturnURL string `json:"return_url,omitempty" jsonschema:"absolute URL the buyer returns to after checkout"`
}

// ProductsOutput is the result of the listing tools.
type ProductsOutput struct {
	Products  []model.Product `json:"products"`
	ManageURL string          `json:"manage_url,omitempty"`
}

// ProductOutput is the result of get_product.
type ProductOutput struct {
	Product model.Product `json:"product"`
}

// CartOutput is the result of the cart tools. SessionToken must be passed
// back on subsequent calls to operate on the same cart.
type CartOutput struct {
	Cart         *model.Cart `json:"cart"`
	SessionToken string      `json:"session_token"`
}

// CheckoutOutput is the result of begin_checkout.
type CheckoutOutput struct {
	Result       *CheckoutResult `json:"result"`
	SessionToken string          `json:"session_token"`
}

// CheckoutResult carries the redirect target, or the upgrade URL when the
// site's plan cannot sell.
type CheckoutResult struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	CheckoutID  string `json:"checkout_id,omitempty"`
	UpgradeURL  string `json:"upgrade_url,omitempty"`
}

// NewMCPServer creates an MCP server with storefront tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-gateway",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront gateway - browse the catalog, manage the visitor cart, " +
				"and hand off to hosted checkout. Cart tools return a session_token; pass it " +
				"back on later calls to keep working with the same cart.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List every product in the catalog.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_collection_products",
		Description: "List the products of a collection by name (case-insensitive). Unknown collections return an empty list.",
	}, h.mcpListCollectionProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_product",
		Description: "Get one product by collection name and slug.",
	}, h.mcpGetProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the visitor's cart, empty if none exists yet.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart. Adding a product already in the cart raises its quantity.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_quantity",
		Description: "Set a cart line item's quantity. Zero removes the line.",
	}, h.mcpSetQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "replace_cart",
		Description: "Replace the cart with exactly the given line items. Requires the full desired state.",
	}, h.mcpReplaceCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Discard the cart entirely.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "begin_checkout",
		Description: "Create a hosted checkout from the cart and return the redirect URL to send the buyer to.",
	}, h.mcpBeginCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// mcpSession resolves the caller's session token, issuing a fresh
// anonymous session when none was supplied.
func (h *Handler) mcpSession(ctx context.Context, in SessionInput) (string, error) {
	if in.SessionToken != "" {
		return in.SessionToken, nil
	}
	tokens, err := h.commerce.AnonymousSession(ctx)
	if err != nil {
		return "", err
	}
	return tokens.Access, nil
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *ProductsOutput, error) {
	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	resp := h.listResponse(products)
	return nil, &ProductsOutput{Products: resp.Products, ManageURL: resp.ManageURL}, nil
}

func (h *Handler) mcpListCollectionProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListCollectionProductsInput,
) (*mcp.CallToolResult, *ProductsOutput, error) {
	products, err := h.catalog.CollectionProducts(ctx, input.Collection)
	if err != nil {
		return nil, nil, err
	}
	resp := h.listResponse(products)
	return nil, &ProductsOutput{Products: resp.Products, ManageURL: resp.ManageURL}, nil
}

func (h *Handler) mcpGetProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProductInput,
) (*mcp.CallToolResult, *ProductOutput, error) {
	product, err := h.catalog.FindProduct(ctx, input.Collection, input.Slug)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, model.NewNotFoundError("product")
	}
	return nil, &ProductOutput{Product: *product}, nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartOutput, error) {
	token, err := h.mcpSession(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	c, err := h.carts.ForSession(token).Cart(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, &CartOutput{Cart: c, SessionToken: token}, nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartOutput, error) {
	token, err := h.mcpSession(ctx, input.SessionInput)
	if err != nil {
		return nil, nil, err
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	c, err := h.carts.ForSession(token).AddItem(ctx, input.CatalogItemID, quantity, input.Options)
	if err != nil {
		return nil, nil, err
	}
	return nil, &CartOutput{Cart: c, SessionToken: token}, nil
}

func (h *Handler) mcpSetQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SetQuantityInput,
) (*mcp.CallToolResult, *CartOutput, error) {
	token, err := h.mcpSession(ctx, input.SessionInput)
	if err != nil {
		return nil, nil, err
	}
	c, err := h.carts.ForSession(token).SetQuantity(ctx, input.LineItemID, input.Quantity)
	if err != nil {
		return nil, nil, err
	}
	return nil, &CartOutput{Cart: c, SessionToken: token}, nil
}

func (h *Handler) mcpReplaceCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ReplaceCartInput,
) (*mcp.CallToolResult, *CartOutput, error) {
	token, err := h.mcpSession(ctx, input.SessionInput)
	if err != nil {
		return nil, nil, err
	}

	desired := make([]cart.DesiredItem, len(input.LineItems))
	for i, li := range input.LineItems {
		desired[i] = cart.DesiredItem{
			CatalogItemID: li.CatalogItemID,
			Quantity:      li.Quantity,
			Options:       li.Options,
		}
	}

	c, err := h.carts.ForSession(token).Replace(ctx, desired)
	if err != nil {
		return nil, nil, err
	}
	return nil, &CartOutput{Cart: c, SessionToken: token}, nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartOutput, error) {
	token, err := h.mcpSession(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	c, err := h.carts.ForSession(token).Clear(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, &CartOutput{Cart: c, SessionToken: token}, nil
}

func (h *Handler) mcpBeginCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BeginCheckoutInput,
) (*mcp.CallToolResult, *CheckoutOutput, error) {
	token, err := h.mcpSession(ctx, input.SessionInput)
	if err != nil {
		return nil, nil, err
	}

	returnURL := h.cfg.ReturnURL()
	if input.ReturnURL != "" {
		returnURL = input.ReturnURL
	}

	c, err := h.carts.ForSession(token).Cart(ctx)
	if err != nil {
		return nil, nil, err
	}

	result, err := h.redirector.Begin(ctx, token, c, returnURL)
	if err != nil {
		// Surface the upgrade path instead of a bare refusal so agents
		// can relay it to the store owner.
		if result != nil && result.UpgradeURL != "" {
			return nil, &CheckoutOutput{
				Result:       &CheckoutResult{UpgradeURL: result.UpgradeURL},
				SessionToken: token,
			}, nil
		}
		return nil, nil, err
	}

	return nil, &CheckoutOutput{
		Result: &CheckoutResult{
			RedirectURL: result.RedirectURL,
			CheckoutID:  result.CheckoutID,
		},
		SessionToken: token,
	}, nil
}
