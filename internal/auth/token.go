// Package auth manages the OAuth2 token lifecycle for a single user: the
// one-time code exchange, proactive refresh inside a safety margin, and
// persistence of the token between runs.
package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultSafetyMargin is how long before expiry a token is considered stale.
const DefaultSafetyMargin = 60 * time.Second

// Token is an access/refresh token pair with its absolute expiry.
// A zero ExpiresAt means the server did not report a lifetime.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// ValidAt reports whether the token is usable at now and will stay usable
// for at least margin.
func (t Token) ValidAt(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// fromOAuth2 converts a golang.org/x/oauth2 token.
func fromOAuth2(t *oauth2.Token) Token {
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.Type(),
		ExpiresAt:    t.Expiry,
	}
}
