package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCarts is a stateful in-memory stand-in for the platform's cart API.
type fakeCarts struct {
	mu       sync.Mutex
	cart     *model.Cart // nil means the session has no cart yet
	nextLine int
	calls    []string

	failNext error // returned by the next mutating call, then cleared

	// When blockAdd is non-nil, AddToCurrentCart signals entered and
	// waits on blockAdd before proceeding.
	blockAdd chan struct{}
	entered  chan struct{}
}

func (f *fakeCarts) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeCarts) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeCarts) snapshot() *model.Cart {
	if f.cart == nil {
		return nil
	}
	c := *f.cart
	c.LineItems = append([]model.LineItem(nil), f.cart.LineItems...)
	return &c
}

func (f *fakeCarts) GetCurrentCart(ctx context.Context, token string) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get")
	if f.cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	return f.snapshot(), nil
}

func (f *fakeCarts) AddToCurrentCart(ctx context.Context, token string, items []commerce.LineItemInput) (*model.Cart, error) {
	f.mu.Lock()
	blockAdd, entered := f.blockAdd, f.entered
	f.mu.Unlock()
	if blockAdd != nil {
		close(entered)
		<-blockAdd
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add")
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
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

func (f *fakeCarts) UpdateLineItemQuantity(ctx context.Context, token, lineItemID string, quantity int) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update")
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	for i := range f.cart.LineItems {
		if f.cart.LineItems[i].ID == lineItemID {
			f.cart.LineItems[i].Quantity = quantity
			return f.snapshot(), nil
		}
	}
	return nil, model.NewNotFoundError("line item")
}

func (f *fakeCarts) RemoveLineItem(ctx context.Context, token, lineItemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove")
	if err := f.takeFailure(); err != nil {
		return err
	}
	kept := f.cart.LineItems[:0]
	for _, li := range f.cart.LineItems {
		if li.ID != lineItemID {
			kept = append(kept, li)
		}
	}
	f.cart.LineItems = kept
	return nil
}

func (f *fakeCarts) DeleteCurrentCart(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.cart = nil
	return nil
}

func newTestSync(f *fakeCarts) *Synchronizer {
	return NewSynchronizer(f, "token-1", testLogger())
}

func TestCartMirrorsEmptyWhenNoCartExists(t *testing.T) {
	s := newTestSync(&fakeCarts{})

	c, err := s.Cart(context.Background())
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("cart = %+v, want empty", c)
	}
	if c.LineItems == nil {
		t.Error("LineItems should be an empty slice, not nil")
	}
}

func TestAddItemCreatesLine(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	c, err := s.AddItem(context.Background(), "prod-a", 2, map[string]string{"Size": "Large"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(c.LineItems) != 1 {
		t.Fatalf("lines = %d, want 1", len(c.LineItems))
	}
	if c.LineItems[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", c.LineItems[0].Quantity)
	}
}

func TestAddItemMergesExistingLine(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	if _, err := s.AddItem(context.Background(), "prod-a", 1, nil); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	c, err := s.AddItem(context.Background(), "prod-a", 1, nil)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}

	// Same product lands on the same line with a raised quantity, never a
	// duplicate line.
	if len(c.LineItems) != 1 {
		t.Fatalf("lines = %d, want 1", len(c.LineItems))
	}
	if c.LineItems[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", c.LineItems[0].Quantity)
	}

	wantCalls := []string{"get", "add", "update"}
	if len(f.calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", f.calls, wantCalls)
	}
	for i, call := range wantCalls {
		if f.calls[i] != call {
			t.Errorf("call[%d] = %s, want %s", i, f.calls[i], call)
		}
	}
}

func TestAddItemValidation(t *testing.T) {
	s := newTestSync(&fakeCarts{})

	if _, err := s.AddItem(context.Background(), "", 1, nil); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("empty catalog ID: err = %v, want invalid request", err)
	}
	if _, err := s.AddItem(context.Background(), "prod-a", 0, nil); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("zero quantity: err = %v, want invalid request", err)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	c, err := s.AddItem(context.Background(), "prod-a", 2, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	lineID := c.LineItems[0].ID

	c, err = s.SetQuantity(context.Background(), lineID, 0)
	if err != nil {
		t.Fatalf("SetQuantity(0): %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("cart = %+v, want empty after zero quantity", c)
	}
}

func TestSetQuantityUnknownLine(t *testing.T) {
	s := newTestSync(&fakeCarts{})

	if _, err := s.SetQuantity(context.Background(), "line-404", 3); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestFailedMutationPreservesMirror(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	before, err := s.AddItem(context.Background(), "prod-a", 2, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	f.mu.Lock()
	f.failNext = model.NewUpstreamError("Wix", errors.New("boom"))
	f.mu.Unlock()

	if _, err := s.AddItem(context.Background(), "prod-b", 1, nil); !errors.Is(err, model.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}

	after, err := s.Cart(context.Background())
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if len(after.LineItems) != len(before.LineItems) {
		t.Fatalf("lines = %d, want %d", len(after.LineItems), len(before.LineItems))
	}
	for i := range before.LineItems {
		if after.LineItems[i] != before.LineItems[i] {
			t.Errorf("line[%d] = %+v, want %+v", i, after.LineItems[i], before.LineItems[i])
		}
	}
}

func TestConcurrentMutationConflicts(t *testing.T) {
	f := &fakeCarts{
		blockAdd: make(chan struct{}),
		entered:  make(chan struct{}),
	}
	s := newTestSync(f)

	done := make(chan error, 1)
	go func() {
		_, err := s.AddItem(context.Background(), "prod-a", 1, nil)
		done <- err
	}()

	select {
	case <-f.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first mutation never reached the platform")
	}

	// Second mutation while the first is in flight must be rejected,
	// not queued.
	if _, err := s.AddItem(context.Background(), "prod-b", 1, nil); !errors.Is(err, model.ErrMutationInFlight) {
		t.Errorf("err = %v, want mutation in flight", err)
	}

	close(f.blockAdd)
	if err := <-done; err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
}

func TestClear(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	if _, err := s.AddItem(context.Background(), "prod-a", 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	c, err := s.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("cart = %+v, want empty", c)
	}

	// Clearing an already-empty cart skips the remote call.
	calls := len(f.calls)
	if _, err := s.Clear(context.Background()); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if len(f.calls) != calls {
		t.Errorf("calls after no-op clear = %v", f.calls)
	}
}

func TestReplace(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	if _, err := s.AddItem(context.Background(), "prod-a", 2, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := s.AddItem(context.Background(), "prod-b", 1, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	c, err := s.Replace(context.Background(), []DesiredItem{
		{CatalogItemID: "prod-a", Quantity: 5},
		{CatalogItemID: "prod-c", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if len(c.LineItems) != 2 {
		t.Fatalf("lines = %d, want 2", len(c.LineItems))
	}
	byCatalog := map[string]int{}
	for _, li := range c.LineItems {
		byCatalog[li.CatalogItemID] = li.Quantity
	}
	if byCatalog["prod-a"] != 5 {
		t.Errorf("prod-a quantity = %d, want 5", byCatalog["prod-a"])
	}
	if byCatalog["prod-c"] != 1 {
		t.Errorf("prod-c quantity = %d, want 1", byCatalog["prod-c"])
	}
	if _, ok := byCatalog["prod-b"]; ok {
		t.Error("prod-b should have been removed")
	}
}

func TestReplaceValidation(t *testing.T) {
	s := newTestSync(&fakeCarts{})

	tests := []struct {
		name    string
		desired []DesiredItem
	}{
		{"missing catalog ID", []DesiredItem{{Quantity: 1}}},
		{"zero quantity", []DesiredItem{{CatalogItemID: "prod-a"}}},
		{"duplicate item", []DesiredItem{
			{CatalogItemID: "prod-a", Quantity: 1},
			{CatalogItemID: "prod-a", Quantity: 2},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Replace(context.Background(), tc.desired); !errors.Is(err, model.ErrInvalidRequest) {
				t.Errorf("err = %v, want invalid request", err)
			}
		})
	}
}

func TestReplaceNoChangesSkipsRemoteCalls(t *testing.T) {
	f := &fakeCarts{}
	s := newTestSync(f)

	c, err := s.AddItem(context.Background(), "prod-a", 2, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	calls := len(f.calls)
	got, err := s.Replace(context.Background(), []DesiredItem{
		{CatalogItemID: "prod-a", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(f.calls) != calls {
		t.Errorf("no-op replace made remote calls: %v", f.calls[calls:])
	}
	if len(got.LineItems) != len(c.LineItems) {
		t.Errorf("lines = %d, want %d", len(got.LineItems), len(c.LineItems))
	}
}

func TestRegistrySharesSynchronizerPerSession(t *testing.T) {
	r := NewRegistry(&fakeCarts{}, testLogger())

	a := r.ForSession("token-a")
	if r.ForSession("token-a") != a {
		t.Error("same session should share one Synchronizer")
	}
	if r.ForSession("token-b") == a {
		t.Error("different sessions must not share a Synchronizer")
	}
}
