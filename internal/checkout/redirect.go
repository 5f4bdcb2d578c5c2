// Package checkout drives the handoff from the visitor's cart to the
// platform's hosted checkout.
//
// The flow is a small state machine: Idle until a checkout is requested,
// SessionRequested while the platform builds the checkout and redirect
// session, then either Redirecting (carrying the URL to send the buyer
// to) or Failed. Failed is retriable: the next request starts from Idle.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront-gateway/internal/commerce"
	"storefront-gateway/internal/model"
)

// State is the redirector's position in the checkout flow.
type State int

const (
	StateIdle State = iota
	StateSessionRequested
	StateRedirecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionRequested:
		return "session_requested"
	case StateRedirecting:
		return "redirecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of a checkout request.
type Result struct {
	// State is Redirecting on success, Failed otherwise.
	State State `json:"state"`

	// RedirectURL is the hosted checkout URL the buyer must be navigated
	// to. Set only when State is Redirecting.
	RedirectURL string `json:"redirect_url,omitempty"`

	// CheckoutID identifies the created checkout. Set on success.
	CheckoutID string `json:"checkout_id,omitempty"`

	// UpgradeURL is the site-plan upgrade page. Set when the platform
	// refused checkout because the site's plan does not include selling.
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

// Redirector converts the current cart into a hosted checkout redirect.
type Redirector struct {
	checkouts commerce.Checkouts
	siteID    string
	logger    *slog.Logger
}

// NewRedirector creates a Redirector. siteID is used to build the upgrade
// URL shown when the platform declines checkout for plan reasons.
func NewRedirector(checkouts commerce.Checkouts, siteID string, logger *slog.Logger) *Redirector {
	return &Redirector{checkouts: checkouts, siteID: siteID, logger: logger}
}

// Begin runs the checkout flow for the given cart: create a checkout from
// the cart, create a redirect session pointing back at returnURL, and
// return the hosted checkout URL.
//
// An empty cart is rejected locally; the platform is never called for a
// checkout that cannot succeed. When the platform refuses because the
// site's plan does not allow selling, the returned Result carries the
// upgrade URL and the error wraps model.ErrUpgradeRequired.
func (r *Redirector) Begin(ctx context.Context, accessToken string, cart *model.Cart, returnURL string) (*Result, error) {
	if cart == nil || cart.IsEmpty() {
		return &Result{State: StateFailed}, model.NewValidationError("cart", "cannot check out an empty cart")
	}

	r.logger.Info("checkout requested", "state", StateSessionRequested.String(), "lines", len(cart.LineItems))

	checkoutID, err := r.checkouts.CreateCheckoutFromCart(ctx, accessToken, commerce.ChannelWeb)
	if err != nil {
		return r.fail(err)
	}

	redirect, err := r.checkouts.CreateRedirectSession(ctx, accessToken, checkoutID, returnURL)
	if err != nil {
		return r.fail(err)
	}

	r.logger.Info("checkout redirect ready", "state", StateRedirecting.String(), "checkout_id", checkoutID)
	return &Result{
		State:       StateRedirecting,
		RedirectURL: redirect.URL,
		CheckoutID:  checkoutID,
	}, nil
}

// fail maps a platform failure into the Failed state. Plan-entitlement
// refusals additionally get the upgrade URL so the caller can render the
// upgrade prompt instead of a bare error.
func (r *Redirector) fail(err error) (*Result, error) {
	result := &Result{State: StateFailed}
	if errors.Is(err, model.ErrUpgradeRequired) {
		result.UpgradeURL = r.UpgradeURL()
		r.logger.Warn("checkout refused, site plan upgrade required", "state", StateFailed.String())
		return result, err
	}
	r.logger.Error("checkout failed", "state", StateFailed.String(), "error", err)
	return result, err
}

// UpgradeURL is the platform's premium-plan purchase page for this site.
func (r *Redirector) UpgradeURL() string {
	return fmt.Sprintf("https://manage.wix.com/premium-purchase-plan/dynamo?siteGuid=%s", r.siteID)
}
