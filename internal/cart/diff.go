package cart

import "storefront-gateway/internal/model"

// DesiredItem is one line of a declarative cart replacement.
type DesiredItem struct {
	// CatalogItemID is the product's catalog identifier. Required.
	CatalogItemID string

	// Quantity must be positive; a zero-quantity line is rejected before
	// diffing.
	Quantity int

	// Options carries the selected option choices for items that need to
	// be added. Ignored for quantity updates of existing lines.
	Options map[string]string
}

// Diff describes the mutations needed to move the cart from its current
// state to a desired state. Apply in order Remove, Update, Add so a
// quantity update never targets a removed line.
type Diff struct {
	ToRemove []string         // line item IDs present only in current
	ToUpdate []QuantityChange // lines in both with different quantities
	ToAdd    []DesiredItem    // lines present only in desired
}

// QuantityChange sets a new quantity for an existing line item.
type QuantityChange struct {
	LineItemID  string
	NewQuantity int
}

// IsEmpty reports whether the cart already matches the desired state.
func (d *Diff) IsEmpty() bool {
	return len(d.ToRemove) == 0 && len(d.ToUpdate) == 0 && len(d.ToAdd) == 0
}

// DiffLineItems computes the delta between the current cart and a desired
// item list. Matching is by catalog item ID; the platform's line item IDs
// only appear on the mutation side, where its APIs require them.
func DiffLineItems(current []model.LineItem, desired []DesiredItem) *Diff {
	diff := &Diff{}

	currentByCatalog := make(map[string]model.LineItem, len(current))
	for _, item := range current {
		currentByCatalog[item.CatalogItemID] = item
	}

	desiredByCatalog := make(map[string]DesiredItem, len(desired))
	for _, item := range desired {
		desiredByCatalog[item.CatalogItemID] = item
	}

	for _, item := range desired {
		existing, ok := currentByCatalog[item.CatalogItemID]
		if !ok {
			diff.ToAdd = append(diff.ToAdd, item)
			continue
		}
		if existing.Quantity != item.Quantity {
			diff.ToUpdate = append(diff.ToUpdate, QuantityChange{
				LineItemID:  existing.ID,
				NewQuantity: item.Quantity,
			})
		}
	}

	for _, item := range current {
		if _, ok := desiredByCatalog[item.CatalogItemID]; !ok {
			diff.ToRemove = append(diff.ToRemove, item.ID)
		}
	}

	return diff
}
