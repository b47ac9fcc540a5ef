package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/matsen/mendeley/internal/errs"
)

// Scope is the only scope Mendeley grants.
const Scope = "all"

// Exchanger performs the token endpoint grants.
type Exchanger interface {
	// Exchange trades a one-time authorization code for a token.
	Exchange(ctx context.Context, code string) (Token, error)
	// Refresh obtains a new token from the current one.
	Refresh(ctx context.Context, current Token) (Token, error)
}

// Granter is implemented by exchangers that can mint a token without user
// interaction (client-credentials).
type Granter interface {
	Grant(ctx context.Context) (Token, error)
}

// Credentials identify the registered application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
}

// OAuthExchanger implements the authorization-code flow and the
// refresh_token grant.
type OAuthExchanger struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// NewOAuthExchanger creates an exchanger for the authorization-code flow.
// httpClient may be nil.
func NewOAuthExchanger(creds Credentials, httpClient *http.Client) *OAuthExchanger {
	return &OAuthExchanger{
		cfg: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       []string{Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   creds.AuthURL,
				TokenURL:  creds.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the URL the user visits to grant access.
func (e *OAuthExchanger) AuthCodeURL(state string) string {
	return e.cfg.AuthCodeURL(state)
}

// Exchange implements Exchanger.
func (e *OAuthExchanger) Exchange(ctx context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, fmt.Errorf("%w: empty authorization code", errs.ErrAuth)
	}
	tok, err := e.cfg.Exchange(e.context(ctx), code)
	if err != nil {
		return Token{}, classify("authorization code exchange", err)
	}
	return fromOAuth2(tok), nil
}

// Refresh implements Exchanger using the refresh_token grant.
func (e *OAuthExchanger) Refresh(ctx context.Context, current Token) (Token, error) {
	if current.RefreshToken == "" {
		return Token{}, fmt.Errorf("%w: token expired and no refresh token is available", errs.ErrAuth)
	}
	// An empty access token forces the source to hit the token endpoint.
	src := e.cfg.TokenSource(e.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, classify("token refresh", err)
	}
	return fromOAuth2(tok), nil
}

func (e *OAuthExchanger) context(ctx context.Context) context.Context {
	if e.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// ClientCredentialsExchanger implements the client-credentials grant used
// for public (catalog-only) access. Refreshing simply re-runs the grant.
type ClientCredentialsExchanger struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentialsExchanger creates an exchanger for public access.
func NewClientCredentialsExchanger(creds Credentials, httpClient *http.Client) *ClientCredentialsExchanger {
	return &ClientCredentialsExchanger{
		cfg: &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL,
			Scopes:       []string{Scope},
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
	}
}

// Grant implements Granter.
func (e *ClientCredentialsExchanger) Grant(ctx context.Context) (Token, error) {
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	tok, err := e.cfg.Token(ctx)
	if err != nil {
		return Token{}, classify("client credentials grant", err)
	}
	return fromOAuth2(tok), nil
}

// Exchange ignores the code; client credentials need no user consent.
func (e *ClientCredentialsExchanger) Exchange(ctx context.Context, _ string) (Token, error) {
	return e.Grant(ctx)
}

// Refresh implements Exchanger.
func (e *ClientCredentialsExchanger) Refresh(ctx context.Context, _ Token) (Token, error) {
	return e.Grant(ctx)
}

// classify maps token endpoint rejections (4xx) to ErrAuth. 5xx responses
// and transport failures are transient; context cancellation is wrapped
// as-is.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	status := 0
	if errors.As(err, &re) && re.Response != nil {
		status = re.Response.StatusCode
		if status >= 400 && status < 500 {
			code := re.ErrorCode
			if code == "" {
				code = re.Response.Status
			}
			return fmt.Errorf("%w: %s rejected: %s", errs.ErrAuth, op, code)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &errs.TransientError{StatusCode: status, Attempts: 1, Err: fmt.Errorf("%s: %w", op, err)}
}
