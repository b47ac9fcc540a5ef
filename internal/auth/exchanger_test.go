package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/mendeley/internal/errs"
)

// tokenServer fakes the token endpoint. reject makes refresh_token grants fail
// with invalid_grant.
func tokenServer(t *testing.T, reject bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		assert.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "the-code", r.Form.Get("code"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "a1", "token_type": "bearer", "expires_in": 3600, "refresh_token": "r1",
			})
		case "refresh_token":
			if reject {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			assert.Equal(t, "r1", r.Form.Get("refresh_token"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "a2", "token_type": "bearer", "expires_in": 3600, "refresh_token": "r2",
			})
		case "client_credentials":
			assert.Equal(t, Scope, r.Form.Get("scope"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "pub", "token_type": "bearer", "expires_in": 3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testCredentials(tokenURL string) Credentials {
	return Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:5000/oauth",
		AuthURL:      "https://api.mendeley.com/oauth/authorize",
		TokenURL:     tokenURL,
	}
}

func TestOAuthExchanger_ExchangeAndRefresh(t *testing.T) {
	srv, hits := tokenServer(t, false)
	ex := NewOAuthExchanger(testCredentials(srv.URL), srv.Client())
	ctx := context.Background()

	tok, err := ex.Exchange(ctx, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	refreshed, err := ex.Refresh(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "a2", refreshed.AccessToken)
	assert.Equal(t, "r2", refreshed.RefreshToken)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOAuthExchanger_RefreshRejectedIsAuthError(t *testing.T) {
	srv, _ := tokenServer(t, true)
	ex := NewOAuthExchanger(testCredentials(srv.URL), srv.Client())

	_, err := ex.Refresh(context.Background(), Token{AccessToken: "a1", RefreshToken: "r1"})
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err), "want ErrAuth, got %v", err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestOAuthExchanger_RefreshWithoutRefreshToken(t *testing.T) {
	srv, hits := tokenServer(t, false)
	ex := NewOAuthExchanger(testCredentials(srv.URL), srv.Client())

	_, err := ex.Refresh(context.Background(), Token{AccessToken: "a1"})
	assert.True(t, errs.IsAuth(err))
	assert.Equal(t, int32(0), hits.Load())
}

func TestOAuthExchanger_BadClientIsAuthError(t *testing.T) {
	srv, _ := tokenServer(t, false)
	creds := testCredentials(srv.URL)
	creds.ClientSecret = "wrong"
	ex := NewOAuthExchanger(creds, srv.Client())

	_, err := ex.Exchange(context.Background(), "the-code")
	assert.True(t, errs.IsAuth(err), "want ErrAuth, got %v", err)
}

func TestOAuthExchanger_TokenEndpointOutageIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"temporarily_unavailable"}`))
	}))
	t.Cleanup(srv.Close)
	ex := NewOAuthExchanger(testCredentials(srv.URL), srv.Client())

	_, err := ex.Refresh(context.Background(), Token{AccessToken: "a1", RefreshToken: "r1"})
	require.Error(t, err)
	assert.False(t, errs.IsAuth(err), "outage must not look like a rejection: %v", err)
	assert.True(t, errs.IsTransient(err), "want transient, got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, errs.StatusCode(err))
}

func TestClientCredentialsExchanger_UnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	tokenURL := srv.URL
	srv.Close()
	ex := NewClientCredentialsExchanger(testCredentials(tokenURL), nil)

	_, err := ex.Grant(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err), "want transient, got %v", err)
	assert.Equal(t, 0, errs.StatusCode(err))
}

func TestOAuthExchanger_AuthCodeURL(t *testing.T) {
	ex := NewOAuthExchanger(testCredentials("https://example.invalid/token"), nil)

	u, err := url.Parse(ex.AuthCodeURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, Scope, q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "http://localhost:5000/oauth", q.Get("redirect_uri"))
	assert.True(t, strings.HasPrefix(u.String(), "https://api.mendeley.com/oauth/authorize?"))
}

func TestClientCredentialsExchanger(t *testing.T) {
	srv, hits := tokenServer(t, false)
	ex := NewClientCredentialsExchanger(testCredentials(srv.URL), srv.Client())
	ctx := context.Background()

	tok, err := ex.Grant(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pub", tok.AccessToken)

	// Refresh re-runs the grant.
	_, err = ex.Refresh(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStoreWithOAuthExchanger(t *testing.T) {
	srv, hits := tokenServer(t, false)
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewStore(NewOAuthExchanger(testCredentials(srv.URL), srv.Client()), WithClock(clock))
	ctx := context.Background()

	_, err := s.Authorize(ctx, "the-code")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, int32(2), hits.Load())
}
