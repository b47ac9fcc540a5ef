package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/matsen/mendeley/internal/errs"
)

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}

// ParseRedirect extracts the authorization code from what the user pasted:
// either the full redirect URL or the bare code. When wantState is non-empty
// the URL's state must match it.
func ParseRedirect(input, wantState string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty authorization response", errs.ErrAuth)
	}
	if !strings.Contains(input, "://") && !strings.Contains(input, "?") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: parsing redirect URL: %v", errs.ErrAuth, err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: authorization denied: %s", errs.ErrAuth, e)
	}
	if wantState != "" && q.Get("state") != wantState {
		return "", fmt.Errorf("%w: state mismatch in redirect", errs.ErrAuth)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: redirect URL has no code parameter", errs.ErrAuth)
	}
	return code, nil
}
