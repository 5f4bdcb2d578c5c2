package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"storefront-gateway/internal/model"
)

type fakeCheckouts struct {
	checkoutErr error
	redirectErr error
	calls       []string
}

func (f *fakeCheckouts) CreateCheckoutFromCart(ctx context.Context, token, channelType string) (string, error) {
	f.calls = append(f.calls, "create:"+channelType)
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return "checkout-1", nil
}

func (f *fakeCheckouts) CreateRedirectSession(ctx context.Context, token, checkoutID, returnURL string) (*model.RedirectSession, error) {
	f.calls = append(f.calls, "redirect:"+checkoutID+":"+returnURL)
	if f.redirectErr != nil {
		return nil, f.redirectErr
	}
	return &model.RedirectSession{
		CheckoutID: checkoutID,
		URL:        "https://checkout.example.com/" + checkoutID,
	}, nil
}

func newTestRedirector(f *fakeCheckouts) *Redirector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedirector(f, "site-guid-1", logger)
}

func cartWithItems() *model.Cart {
	return &model.Cart{
		ID:        "cart-1",
		LineItems: []model.LineItem{{ID: "line-1", CatalogItemID: "prod-a", Quantity: 1}},
	}
}

func TestBeginSuccess(t *testing.T) {
	f := &fakeCheckouts{}
	r := newTestRedirector(f)

	result, err := r.Begin(context.Background(), "token", cartWithItems(), "https://store.example.com")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if result.State != StateRedirecting {
		t.Errorf("state = %v, want redirecting", result.State)
	}
	if result.CheckoutID != "checkout-1" {
		t.Errorf("checkout ID = %s, want checkout-1", result.CheckoutID)
	}
	if result.RedirectURL != "https://checkout.example.com/checkout-1" {
		t.Errorf("redirect URL = %s", result.RedirectURL)
	}

	wantCalls := []string{"create:WEB", "redirect:checkout-1:https://store.example.com"}
	if len(f.calls) != 2 || f.calls[0] != wantCalls[0] || f.calls[1] != wantCalls[1] {
		t.Errorf("calls = %v, want %v", f.calls, wantCalls)
	}
}

func TestBeginEmptyCartRejectedLocally(t *testing.T) {
	f := &fakeCheckouts{}
	r := newTestRedirector(f)

	tests := []struct {
		name string
		cart *model.Cart
	}{
		{"nil cart", nil},
		{"empty cart", &model.Cart{LineItems: []model.LineItem{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := r.Begin(context.Background(), "token", tc.cart, "https://store.example.com")
			if !errors.Is(err, model.ErrInvalidRequest) {
				t.Errorf("err = %v, want invalid request", err)
			}
			if result.State != StateFailed {
				t.Errorf("state = %v, want failed", result.State)
			}
			// The platform must never see a checkout that cannot succeed.
			if len(f.calls) != 0 {
				t.Errorf("calls = %v, want none", f.calls)
			}
		})
	}
}

func TestBeginUpgradeRequired(t *testing.T) {
	f := &fakeCheckouts{checkoutErr: model.NewUpgradeRequiredError("free plan")}
	r := newTestRedirector(f)

	result, err := r.Begin(context.Background(), "token", cartWithItems(), "https://store.example.com")
	if !errors.Is(err, model.ErrUpgradeRequired) {
		t.Fatalf("err = %v, want upgrade required", err)
	}
	if result.State != StateFailed {
		t.Errorf("state = %v, want failed", result.State)
	}
	if !strings.Contains(result.UpgradeURL, "site-guid-1") {
		t.Errorf("upgrade URL = %s, want it to carry the site GUID", result.UpgradeURL)
	}
}

func TestBeginRedirectFailureAfterCheckout(t *testing.T) {
	f := &fakeCheckouts{redirectErr: model.NewUpstreamError("Wix", errors.New("boom"))}
	r := newTestRedirector(f)

	result, err := r.Begin(context.Background(), "token", cartWithItems(), "https://store.example.com")
	if !errors.Is(err, model.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
	if result.State != StateFailed {
		t.Errorf("state = %v, want failed", result.State)
	}
	if result.UpgradeURL != "" {
		t.Errorf("upgrade URL = %s, want empty on non-entitlement failure", result.UpgradeURL)
	}
}

func TestBeginFailureIsRetriable(t *testing.T) {
	f := &fakeCheckouts{checkoutErr: model.NewUpstreamError("Wix", errors.New("boom"))}
	r := newTestRedirector(f)

	if _, err := r.Begin(context.Background(), "token", cartWithItems(), "https://store.example.com"); err == nil {
		t.Fatal("first attempt should fail")
	}

	f.checkoutErr = nil
	result, err := r.Begin(context.Background(), "token", cartWithItems(), "https://store.example.com")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if result.State != StateRedirecting {
		t.Errorf("state = %v, want redirecting", result.State)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateSessionRequested, "session_requested"},
		{StateRedirecting, "redirecting"},
		{StateFailed, "failed"},
		{State(99), "state(99)"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %s, want %s", tc.state, got, tc.want)
		}
	}
}
