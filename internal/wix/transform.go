package wix

import (
	"math"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
)

// Transforms between Wix API types and the gateway's domain model.
// All pricing stays display-formatted strings; the platform owns the
// numbers and the gateway never recomputes them.

// ProductsToModel converts a page of Wix products.
func ProductsToModel(products []WixProduct) []model.Product {
	out := make([]model.Product, len(products))
	for i := range products {
		out[i] = ProductToModel(&products[i])
	}
	return out
}

// ProductToModel converts one Wix product to the domain model.
func ProductToModel(p *WixProduct) model.Product {
	return model.Product{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       displayPrice(p),
		Options:     optionsToModel(p.ProductOptions),
		Collections: p.CollectionIDs,
	}
}

// displayPrice picks the display price for a product: the converted
// discounted price when present, falling back through the formatted
// variants to a locally formatted amount.
func displayPrice(p *WixProduct) string {
	for _, pd := range []*WixPriceData{p.ConvertedPriceData, p.PriceData} {
		if pd == nil {
			continue
		}
		if pd.Formatted != nil {
			if pd.Formatted.DiscountedPrice != "" {
				return pd.Formatted.DiscountedPrice
			}
			if pd.Formatted.Price != "" {
				return pd.Formatted.Price
			}
		}
	}
	if p.PriceData != nil && p.PriceData.Price != 0 {
		cents := int64(math.Round(p.PriceData.Price * 100))
		return model.FormatCents(cents, p.PriceData.Currency)
	}
	return ""
}

// optionsToModel converts product options, keeping catalog order. Choice
// descriptions are what the cart API expects in option selections.
func optionsToModel(opts []WixProductOption) []model.ProductOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]model.ProductOption, len(opts))
	for i, opt := range opts {
		choices := make([]string, 0, len(opt.Choices))
		for _, ch := range opt.Choices {
			if ch.Description != "" {
				choices = append(choices, ch.Description)
			} else {
				choices = append(choices, ch.Value)
			}
		}
		out[i] = model.ProductOption{Name: opt.Name, Choices: choices}
	}
	return out
}

// CollectionsToModel converts Wix collections.
func CollectionsToModel(collections []WixCollection) []model.Collection {
	out := make([]model.Collection, len(collections))
	for i, c := range collections {
		out[i] = model.Collection{ID: c.ID, Name: c.Name}
	}
	return out
}

// CartToModel converts a Wix cart to the domain model. A nil cart maps
// to the empty cart rather than a nil pointer so callers can always
// render a mirror.
func CartToModel(c *WixCart) *model.Cart {
	if c == nil {
		return &model.Cart{LineItems: []model.LineItem{}}
	}

	items := make([]model.LineItem, 0, len(c.LineItems))
	for _, li := range c.LineItems {
		items = append(items, lineItemToModel(&li))
	}

	subtotal := ""
	if c.Subtotal != nil {
		subtotal = c.Subtotal.FormattedAmount
		if subtotal == "" && c.Subtotal.Amount != "" {
			subtotal = model.FormatCents(model.ParseCents(c.Subtotal.Amount), c.Currency)
		}
	}

	return &model.Cart{
		ID:        c.ID,
		LineItems: items,
		Subtotal:  subtotal,
		Currency:  c.Currency,
	}
}

// lineItemToModel converts one cart line item.
func lineItemToModel(li *WixLineItem) model.LineItem {
	item := model.LineItem{
		ID:       li.ID,
		Quantity: li.Quantity,
	}
	if li.CatalogReference != nil {
		item.CatalogItemID = li.CatalogReference.CatalogItemID
	}
	if li.ProductName != nil {
		item.Name = li.ProductName.Original
		if li.ProductName.Translated != "" {
			item.Name = li.ProductName.Translated
		}
	}
	if li.Price != nil {
		item.UnitPrice = li.Price.FormattedAmount
		if item.UnitPrice == "" {
			item.UnitPrice = li.Price.Amount
		}
	}
	return item
}

// LineItemInputsToWix converts add-to-cart inputs into catalog references
// carrying the Stores app ID and the selected option choices.
func LineItemInputsToWix(items []commerce.LineItemInput) []WixLineItemInput {
	out := make([]WixLineItemInput, len(items))
	for i, item := range items {
		ref := &WixCatalogRef{
			CatalogItemID: item.CatalogItemID,
			AppID:         StoresAppID,
		}
		if len(item.Options) > 0 {
			ref.Options = &WixCatalogRefOptions{Options: item.Options}
		}
		out[i] = WixLineItemInput{
			CatalogReference: ref,
			Quantity:         item.Quantity,
		}
	}
	return out
}

// Ensure Client implements the full commerce surface.
var _ commerce.Client = (*Client)(nil)
