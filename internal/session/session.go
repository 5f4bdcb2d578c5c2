// Package session manages the visitor session: an opaque bearer-token pair
// (access + refresh) issued by the commerce platform and carried in a
// browser cookie. The tokens are never parsed or validated here, only
// stored and forwarded.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// CookieName is the cookie holding the encoded token pair.
// Matches the storefront convention of a single "session" cookie.
const CookieName = "session"

// cookieTTL bounds how long a visitor session cookie survives. Upstream
// access tokens expire after 4 hours; the refresh token outlives them.
const cookieTTL = 14 * 24 * time.Hour

// Tokens is the visitor token pair. Both values are opaque.
type Tokens struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// IsZero reports whether no session is present.
func (t Tokens) IsZero() bool {
	return t.Access == "" && t.Refresh == ""
}

// FromRequest decodes the token pair from the session cookie.
// Returns false when the cookie is absent or unreadable; callers then
// start a fresh anonymous session.
func FromRequest(r *http.Request) (Tokens, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Tokens{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Tokens{}, false
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil || t.IsZero() {
		return Tokens{}, false
	}
	return t, true
}

// Write sets the session cookie on the response.
func Write(w http.ResponseWriter, t Tokens, secure bool) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(cookieTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

type contextKey struct{}

// NewContext returns a context carrying the visitor tokens.
func NewContext(ctx context.Context, t Tokens) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext extracts the visitor tokens stored by NewContext.
func FromContext(ctx context.Context) (Tokens, bool) {
	t, ok := ctx.Value(contextKey{}).(Tokens)
	return t, ok && !t.IsZero()
}
