package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/mendeley/internal/auth"
	"github.com/matsen/mendeley/internal/config"
)

var loginState string

func init() {
	authLoginCmd.Flags().StringVar(&loginState, "state", "", "Expected state parameter from 'mly auth url'")

	authCmd.AddCommand(authURLCmd, authLoginCmd, authStatusCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize mly against a Mendeley account",
}

// AuthURLResponse is the response for auth url.
type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// AuthStatusResponse is the response for auth status. It never includes
// token values.
type AuthStatusResponse struct {
	User            string     `json:"user"`
	Authorized      bool       `json:"authorized"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Expired         bool       `json:"expired"`
	CredentialsPath string     `json:"credentials_path"`
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the authorization URL to open in a browser",
	Long: `Print the URL where the user grants access. After consenting, the
browser is redirected to the configured redirect URI; pass that URL (or just
its code parameter) to 'mly auth login'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if err := cfg.Validate(); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		state := auth.NewState()
		resp := AuthURLResponse{URL: oauthExchanger(cfg).AuthCodeURL(state), State: state}

		if humanOutput {
			outputHuman("Open this URL and approve access:\n\n  %s\n\nThen run:\n  mly auth login --state %s '<redirect-url>'\n", resp.URL, resp.State)
			return nil
		}
		return outputJSON(resp)
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login [code-or-redirect-url]",
	Short: "Exchange an authorization code for a token",
	Long: `Exchange the authorization code for an access token and store it.

With public (client-credentials) access configured no argument is needed.

Examples:
  mly auth login 'http://localhost:5000/oauth?code=abc&state=xyz' --state xyz
  mly auth login abc`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store := mustStore(cfg)

		var code string
		if !cfg.Public {
			if len(args) == 0 {
				exitWithError(ExitError, "an authorization code or redirect URL is required")
			}
			var err error
			code, err = auth.ParseRedirect(args[0], loginState)
			if err != nil {
				exitWithErr("reading authorization response", err)
			}
		}

		tok, err := store.Authorize(cmd.Context(), code)
		if err != nil {
			exitWithErr("authorizing", err)
		}
		logger.Debug("token stored")

		path := config.CredentialsPath(cfg.DataDir, cfg.User)
		if humanOutput {
			outputHuman("Authorized %s (token expires %s)\n", cfg.User, formatExpiry(tok.ExpiresAt))
			return nil
		}
		return outputJSON(StatusResponse{Status: "authorized", Path: path})
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored and when it expires",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store := mustStore(cfg)

		resp := AuthStatusResponse{
			User:            cfg.User,
			CredentialsPath: config.CredentialsPath(cfg.DataDir, cfg.User),
		}
		if tok, ok := store.Current(); ok {
			resp.Authorized = true
			resp.HasRefreshToken = tok.RefreshToken != ""
			if !tok.ExpiresAt.IsZero() {
				exp := tok.ExpiresAt
				resp.ExpiresAt = &exp
				resp.Expired = !tok.ValidAt(time.Now(), 0)
			}
		}

		if humanOutput {
			if !resp.Authorized {
				outputHuman("%s: not authorized (run 'mly auth url')\n", resp.User)
				return nil
			}
			expiry := "never"
			if resp.ExpiresAt != nil {
				expiry = formatExpiry(*resp.ExpiresAt)
			}
			state := "valid"
			if resp.Expired {
				state = "expired"
				if resp.HasRefreshToken {
					state += ", will refresh on next use"
				}
			}
			outputHuman("%s: authorized, token %s (expires %s)\n", resp.User, state, expiry)
			return nil
		}
		return outputJSON(resp)
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store := mustStore(cfg)
		if err := store.Clear(); err != nil {
			exitWithError(ExitError, "%v", err)
		}

		if humanOutput {
			outputHuman("Logged out %s\n", cfg.User)
			return nil
		}
		return outputJSON(StatusResponse{Status: "logged_out", Path: config.CredentialsPath(cfg.DataDir, cfg.User)})
	},
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
