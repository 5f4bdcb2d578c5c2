// Package cart keeps a server-confirmed mirror of the visitor's cart and
// serializes mutations against it.
//
// The remote platform owns the cart. Every mutation either returns the
// full updated cart or is followed by a refetch, and the mirror is
// replaced only with what the server confirmed. A failed mutation leaves
// the mirror untouched, so the view the visitor sees is always a state
// the platform actually held.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
)

// Synchronizer mirrors one visitor session's cart. Mutations are
// serialized: a mutation arriving while another is in flight is rejected
// with model.ErrMutationInFlight rather than queued, since the second
// caller decided against a cart state that is about to change.
type Synchronizer struct {
	carts  commerce.Carts
	token  string
	logger *slog.Logger

	mu     sync.Mutex
	mirror *model.Cart
	loaded bool
}

// NewSynchronizer creates a Synchronizer for the session identified by
// accessToken. The mirror starts unloaded and is fetched on first use.
func NewSynchronizer(carts commerce.Carts, accessToken string, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{carts: carts, token: accessToken, logger: logger}
}

// Cart returns the mirrored cart, loading it from the platform on first
// call. A session that never created a cart mirrors as empty.
func (s *Synchronizer) Cart(ctx context.Context) (*model.Cart, error) {
	// Reads during a mutation wait; only mutations conflict.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Refresh discards the mirror and refetches the cart from the platform.
func (s *Synchronizer) Refresh(ctx context.Context) (*model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// AddItem adds quantity units of a product to the cart. If the product is
// already in the cart (matched by catalog item ID) the existing line's
// quantity is raised instead of creating a duplicate line.
func (s *Synchronizer) AddItem(ctx context.Context, catalogItemID string, quantity int, options map[string]string) (*model.Cart, error) {
	if catalogItemID == "" {
		return nil, model.NewValidationError("catalog_item_id", "required")
	}
	if quantity <= 0 {
		return nil, model.NewValidationError("quantity", "must be positive")
	}

	return s.mutate(ctx, func(ctx context.Context) (*model.Cart, error) {
		if existing := s.mirror.FindByCatalogID(catalogItemID); existing != nil {
			return s.carts.UpdateLineItemQuantity(ctx, s.token, existing.ID, existing.Quantity+quantity)
		}
		return s.carts.AddToCurrentCart(ctx, s.token, []commerce.LineItemInput{{
			CatalogItemID: catalogItemID,
			Quantity:      quantity,
			Options:       options,
		}})
	})
}

// SetQuantity sets a line item's quantity. Zero removes the line.
func (s *Synchronizer) SetQuantity(ctx context.Context, lineItemID string, quantity int) (*model.Cart, error) {
	if quantity < 0 {
		return nil, model.NewValidationError("quantity", "must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, lineItemID)
	}

	return s.mutate(ctx, func(ctx context.Context) (*model.Cart, error) {
		if s.findLine(lineItemID) == nil {
			return nil, model.NewNotFoundError("line item")
		}
		return s.carts.UpdateLineItemQuantity(ctx, s.token, lineItemID, quantity)
	})
}

// RemoveItem removes a line item from the cart.
func (s *Synchronizer) RemoveItem(ctx context.Context, lineItemID string) (*model.Cart, error) {
	return s.mutate(ctx, func(ctx context.Context) (*model.Cart, error) {
		if s.findLine(lineItemID) == nil {
			return nil, model.NewNotFoundError("line item")
		}
		if err := s.carts.RemoveLineItem(ctx, s.token, lineItemID); err != nil {
			return nil, err
		}
		// The remove endpoint's response is discarded; refetch so the
		// mirror is still server-confirmed.
		cart, err := s.carts.GetCurrentCart(ctx, s.token)
		if errors.Is(err, model.ErrNotFound) {
			return emptyCart(), nil
		}
		return cart, err
	})
}

// Clear discards the cart entirely.
func (s *Synchronizer) Clear(ctx context.Context) (*model.Cart, error) {
	return s.mutate(ctx, func(ctx context.Context) (*model.Cart, error) {
		if s.mirror.IsEmpty() {
			return s.mirror, nil
		}
		if err := s.carts.DeleteCurrentCart(ctx, s.token); err != nil {
			return nil, err
		}
		return emptyCart(), nil
	})
}

// Replace moves the cart to exactly the desired item list: lines not in
// desired are removed, quantity mismatches updated, missing lines added.
// Removals run first so an update never targets a removed line. If any
// step fails the mirror is refetched, since earlier steps may already
// have been applied.
func (s *Synchronizer) Replace(ctx context.Context, desired []DesiredItem) (*model.Cart, error) {
	seen := make(map[string]bool, len(desired))
	for _, item := range desired {
		if item.CatalogItemID == "" {
			return nil, model.NewValidationError("catalog_item_id", "required")
		}
		if item.Quantity <= 0 {
			return nil, model.NewValidationError("quantity", "must be positive")
		}
		if seen[item.CatalogItemID] {
			return nil, model.NewValidationError("line_items", fmt.Sprintf("duplicate item %s", item.CatalogItemID))
		}
		seen[item.CatalogItemID] = true
	}

	return s.mutate(ctx, func(ctx context.Context) (*model.Cart, error) {
		diff := DiffLineItems(s.mirror.LineItems, desired)
		if diff.IsEmpty() {
			return s.mirror, nil
		}

		cart, err := s.applyDiff(ctx, diff)
		if err != nil {
			// Partial application: resync the mirror with whatever state
			// the platform is actually in before surfacing the failure.
			if current, rerr := s.carts.GetCurrentCart(ctx, s.token); rerr == nil {
				s.mirror = current
			}
			return nil, err
		}
		return cart, nil
	})
}

func (s *Synchronizer) applyDiff(ctx context.Context, diff *Diff) (*model.Cart, error) {
	for _, id := range diff.ToRemove {
		if err := s.carts.RemoveLineItem(ctx, s.token, id); err != nil {
			return nil, fmt.Errorf("removing line item: %w", err)
		}
	}
	for _, change := range diff.ToUpdate {
		if _, err := s.carts.UpdateLineItemQuantity(ctx, s.token, change.LineItemID, change.NewQuantity); err != nil {
			return nil, fmt.Errorf("updating line item quantity: %w", err)
		}
	}
	if len(diff.ToAdd) > 0 {
		inputs := make([]commerce.LineItemInput, len(diff.ToAdd))
		for i, item := range diff.ToAdd {
			inputs[i] = commerce.LineItemInput{
				CatalogItemID: item.CatalogItemID,
				Quantity:      item.Quantity,
				Options:       item.Options,
			}
		}
		if _, err := s.carts.AddToCurrentCart(ctx, s.token, inputs); err != nil {
			return nil, fmt.Errorf("adding line items: %w", err)
		}
	}

	cart, err := s.carts.GetCurrentCart(ctx, s.token)
	if errors.Is(err, model.ErrNotFound) {
		return emptyCart(), nil
	}
	return cart, err
}

// mutate serializes a mutation: acquire the session lock without waiting,
// ensure the mirror is loaded, run the operation, and replace the mirror
// only with the server-confirmed result.
func (s *Synchronizer) mutate(ctx context.Context, op func(context.Context) (*model.Cart, error)) (*model.Cart, error) {
	if !s.mu.TryLock() {
		return nil, model.NewConflictError("another cart mutation is in flight")
	}
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	cart, err := op(ctx)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = emptyCart()
	}
	s.mirror = cart
	return s.snapshot(), nil
}

// ensureLoaded fetches the cart the first time the session is touched.
// The caller holds the lock.
func (s *Synchronizer) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.load(ctx)
}

func (s *Synchronizer) load(ctx context.Context) error {
	cart, err := s.carts.GetCurrentCart(ctx, s.token)
	if errors.Is(err, model.ErrNotFound) {
		cart = emptyCart()
	} else if err != nil {
		return err
	}
	s.mirror = cart
	s.loaded = true
	return nil
}

// snapshot copies the mirror so callers cannot mutate it behind the lock.
func (s *Synchronizer) snapshot() *model.Cart {
	c := *s.mirror
	c.LineItems = make([]model.LineItem, len(s.mirror.LineItems))
	copy(c.LineItems, s.mirror.LineItems)
	return &c
}

func (s *Synchronizer) findLine(lineItemID string) *model.LineItem {
	for i := range s.mirror.LineItems {
		if s.mirror.LineItems[i].ID == lineItemID {
			return &s.mirror.LineItems[i]
		}
	}
	return nil
}

func emptyCart() *model.Cart {
	return &model.Cart{LineItems: []model.LineItem{}}
}

// Registry hands out one Synchronizer per visitor session so concurrent
// requests for the same session share a mutation lock. Idle sessions are
// pruned; a pruned session just reloads its mirror on next use.
type Registry struct {
	carts  commerce.Carts
	logger *slog.Logger

	mu        sync.Mutex
	sessions  map[string]*registryEntry
	lastPrune time.Time
}

type registryEntry struct {
	sync     *Synchronizer
	lastSeen time.Time
}

const (
	sessionIdleTTL = 30 * time.Minute
	pruneInterval  = 5 * time.Minute
)

// NewRegistry creates a session registry backed by the given cart client.
func NewRegistry(carts commerce.Carts, logger *slog.Logger) *Registry {
	return &Registry{
		carts:     carts,
		logger:    logger,
		sessions:  make(map[string]*registryEntry),
		lastPrune: time.Now(),
	}
}

// ForSession returns the session's Synchronizer, creating it on first use.
func (r *Registry) ForSession(accessToken string) *Synchronizer {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastPrune) > pruneInterval {
		r.prune(now)
	}

	entry, ok := r.sessions[accessToken]
	if !ok {
		entry = &registryEntry{sync: NewSynchronizer(r.carts, accessToken, r.logger)}
		r.sessions[accessToken] = entry
	}
	entry.lastSeen = now
	return entry.sync
}

// prune drops sessions idle past the TTL. The caller holds the lock.
func (r *Registry) prune(now time.Time) {
	for token, entry := range r.sessions {
		if now.Sub(entry.lastSeen) > sessionIdleTTL {
			delete(r.sessions, token)
		}
	}
	r.lastPrune = now
}
