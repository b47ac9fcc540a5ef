package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/mendeley/internal/errs"
)

// Store owns the current token. Concurrent callers that find the token stale
// inside the same expiry window share one refresh exchange.
type Store struct {
	exchanger Exchanger
	persister Persister
	margin    time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.RWMutex
	token *Token
	stale bool // set by Invalidate after a 401
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersister saves the token after every exchange and refresh.
func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.persister = p
	}
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.margin = d
		}
	}
}

// WithClock sets the time source (for testing).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a Store with no token. Call Load to resume a persisted
// session or Authorize to start one.
func NewStore(ex Exchanger, opts ...StoreOption) *Store {
	s := &Store{
		exchanger: ex,
		margin:    DefaultSafetyMargin,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads a previously persisted token. A missing token is not an error.
func (s *Store) Load() error {
	if s.persister == nil {
		return nil
	}
	tok, err := s.persister.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	s.stale = false
	return nil
}

// Authorize exchanges a one-time authorization code and stores the result.
func (s *Store) Authorize(ctx context.Context, code string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return Token{}, err
	}
	s.token = &tok
	s.stale = false

	if s.persister != nil {
		if err := s.persister.Save(tok); err != nil {
			return tok, fmt.Errorf("saving token: %w", err)
		}
	}
	s.logger.Info("authorized", zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// Token returns a token that will not expire within the safety margin,
// refreshing synchronously when needed.
func (s *Store) Token(ctx context.Context) (Token, error) {
	// Fast path: check with read lock
	s.mu.RLock()
	if tok, ok := s.usableLocked(); ok {
		s.mu.RUnlock()
		return tok, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if tok, ok := s.usableLocked(); ok {
		return tok, nil
	}
	return s.refreshLocked(ctx)
}

// AccessToken returns just the bearer string of a valid token.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Invalidate marks the held token for refresh if its access token is still
// staleAccess. A caller that lost the race to a concurrent refresh does not
// force a second one.
func (s *Store) Invalidate(staleAccess string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.AccessToken == staleAccess {
		s.stale = true
	}
}

// Current returns the held token without refreshing.
func (s *Store) Current() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return Token{}, false
	}
	return *s.token, true
}

// Clear forgets the token and removes the persisted copy.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.stale = false
	if s.persister != nil {
		return s.persister.Clear()
	}
	return nil
}

func (s *Store) usableLocked() (Token, bool) {
	if s.token == nil || s.stale {
		return Token{}, false
	}
	if !s.token.ValidAt(s.now(), s.margin) {
		return Token{}, false
	}
	return *s.token, true
}

// refreshLocked replaces the token. Caller holds the write lock.
func (s *Store) refreshLocked(ctx context.Context) (Token, error) {
	var (
		tok Token
		err error
	)
	switch {
	case s.token != nil:
		tok, err = s.exchanger.Refresh(ctx, *s.token)
	default:
		g, ok := s.exchanger.(Granter)
		if !ok {
			return Token{}, fmt.Errorf("%w: not authorized, run the login flow first", errs.ErrAuth)
		}
		tok, err = g.Grant(ctx)
	}
	if err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
		return Token{}, err
	}

	// Some servers omit the refresh token on refresh; keep the old one.
	if tok.RefreshToken == "" && s.token != nil {
		tok.RefreshToken = s.token.RefreshToken
	}
	s.token = &tok
	s.stale = false
	s.logger.Debug("token refreshed", zap.Time("expires_at", tok.ExpiresAt))

	if s.persister != nil {
		if err := s.persister.Save(tok); err != nil {
			s.logger.Warn("persisting refreshed token failed", zap.Error(err))
		}
	}
	return tok, nil
}
