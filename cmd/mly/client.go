package main

import (
	"errors"
	"net/http"

	"github.com/matsen/mendeley/internal/auth"
	"github.com/matsen/mendeley/internal/config"
	"github.com/matsen/mendeley/internal/library"
	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/storage"
)

// mustLoadConfig loads the global config or exits with ExitConfigError.
func mustLoadConfig() *config.GlobalConfig {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustStore builds the token store for the configured user and loads any
// persisted token.
func mustStore(cfg *config.GlobalConfig) *auth.Store {
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrClientNotConfigured) && humanOutput {
			exitWithError(ExitConfigError, "%s", config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "%v", err)
	}

	creds := auth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
	}
	var ex auth.Exchanger
	if cfg.Public {
		ex = auth.NewClientCredentialsExchanger(creds, nil)
	} else {
		ex = auth.NewOAuthExchanger(creds, nil)
	}

	store := auth.NewStore(ex,
		auth.WithPersister(auth.NewFilePersister(config.CredentialsPath(cfg.DataDir, cfg.User))),
		auth.WithSafetyMargin(cfg.HTTP.RefreshMargin),
		auth.WithLogger(logger.Named("auth")),
	)
	if err := store.Load(); err != nil {
		exitWithError(ExitConfigError, "loading token: %v", err)
	}
	return store
}

// oauthExchanger returns the authorization-code exchanger, for building the
// consent URL.
func oauthExchanger(cfg *config.GlobalConfig) *auth.OAuthExchanger {
	return auth.NewOAuthExchanger(auth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
	}, nil)
}

// newClient creates an API client for the configured user.
func newClient(cfg *config.GlobalConfig, tokens mendeley.TokenSource) *mendeley.Client {
	opts := []mendeley.SessionOption{
		mendeley.WithBaseURL(cfg.BaseURL),
		mendeley.WithDevToken(cfg.DevToken),
		mendeley.WithUserAgent("mly/" + Version),
		mendeley.WithRetry(cfg.HTTP.MaxAttempts, cfg.HTTP.BackoffBase, cfg.HTTP.BackoffMax),
		mendeley.WithSessionLogger(logger.Named("session")),
	}
	if cfg.HTTP.Timeout > 0 {
		opts = append(opts, mendeley.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}))
	}
	if cfg.HTTP.RateLimit > 0 {
		opts = append(opts, mendeley.WithRateLimit(cfg.HTTP.RateLimit))
	}

	session := mendeley.NewSession(tokens, opts...)
	return mendeley.NewClient(session, mendeley.WithPageLimit(cfg.HTTP.PageLimit))
}

// mustClient is mustStore followed by newClient.
func mustClient(cfg *config.GlobalConfig) *mendeley.Client {
	return newClient(cfg, mustStore(cfg))
}

// mustSnapshot loads the local library snapshot into an index. Documents
// bound from it are detached: their lazy members need a live client.
func mustSnapshot(cfg *config.GlobalConfig) *library.Index {
	path := config.LibraryPath(cfg.DataDir)
	records, err := storage.ReadRecords(path)
	if err != nil {
		exitWithError(ExitDataError, "reading library snapshot: %v", err)
	}
	if records == nil {
		exitWithError(ExitConfigError, "no library snapshot at %s; run 'mly library sync' first", path)
	}
	idx, err := library.FromRecords(records, mendeley.NewBinder(nil))
	if err != nil {
		exitWithErr("loading library snapshot", err)
	}
	return idx
}

// mustOpenDB opens the SQLite snapshot, rebuilding it from JSONL when the
// database is empty.
func mustOpenDB(cfg *config.GlobalConfig) *storage.DB {
	if err := config.EnsureDir(config.CachePath(cfg.DataDir)); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	db, err := storage.OpenDB(config.DBPath(cfg.DataDir))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}

	count, err := db.Count()
	if err != nil {
		db.Close()
		exitWithError(ExitError, "counting documents: %v", err)
	}
	if count == 0 {
		if _, err := db.RebuildFromJSONL(config.LibraryPath(cfg.DataDir), mendeley.NewBinder(nil)); err != nil {
			db.Close()
			exitWithErr("rebuilding database", err)
		}
	}
	return db
}
