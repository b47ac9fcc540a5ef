package mendeley

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/mendeley/internal/errs"
)

const (
	// BaseURL is the Mendeley API base URL.
	BaseURL = "https://api.mendeley.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is the default client-side request rate per second.
	RateLimit = 10.0

	// DefaultMaxAttempts bounds retries of 429/5xx and transport failures.
	DefaultMaxAttempts = 5

	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultBackoffMax caps a single computed retry delay.
	DefaultBackoffMax = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 8 * 1024
)

// TokenSource supplies bearer tokens and accepts invalidation after a 401.
// *auth.Store implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate(staleAccess string)
}

// Session performs authenticated requests with retry, backoff and a single
// transparent token refresh on 401.
type Session struct {
	httpClient  *http.Client
	tokens      TokenSource
	limiter     *RateLimiter
	baseURL     string
	devToken    string
	userAgent   string
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
	logger      *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) SessionOption {
	return func(s *Session) {
		s.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) SessionOption {
	return func(s *Session) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithDevToken sends a Development-Token header on every request.
func WithDevToken(tok string) SessionOption {
	return func(s *Session) {
		s.devToken = tok
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SessionOption {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// WithRateLimit sets the client-side request rate. rps <= 0 disables it.
func WithRateLimit(rps float64) SessionOption {
	return func(s *Session) {
		s.limiter = NewRateLimiter(rps, 1)
	}
}

// WithRetry sets the attempt bound and backoff schedule. Zero values keep
// the defaults.
func WithRetry(maxAttempts int, base, max time.Duration) SessionOption {
	return func(s *Session) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if base > 0 {
			s.backoffBase = base
		}
		if max > 0 {
			s.backoffMax = max
		}
	}
}

// WithSleeper replaces the backoff sleep (for testing).
func WithSleeper(sleep func(context.Context, time.Duration) error) SessionOption {
	return func(s *Session) {
		s.sleep = sleep
	}
}

// WithSessionClock sets the time source used for Retry-After dates.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates a session that authenticates with tokens.
func NewSession(tokens TokenSource, opts ...SessionOption) *Session {
	s := &Session{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		tokens:      tokens,
		limiter:     NewRateLimiter(RateLimit, 1),
		baseURL:     BaseURL,
		userAgent:   "mly",
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		now:         time.Now,
		sleep:       sleepContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter.now = s.now
	s.limiter.sleep = s.sleep
	return s
}

// Request describes one API call. Path is relative to the base URL or an
// absolute URL (as found in pagination links). RawBody, when set, is sent
// as-is instead of the JSON encoding of Body.
type Request struct {
	Method      string
	Path        string
	Params      url.Values
	Body        any
	RawBody     []byte
	ContentType string // defaults to application/json for Body, application/octet-stream for RawBody
	Accept      string
	Header      http.Header
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", errs.ErrSchema, err)
	}
	return nil
}

// Records decodes a JSON array of objects, or a single object as a
// one-element page. An empty body yields no records.
func (r *Response) Records() ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(r.Body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var rec RawRecord
		if err := r.Decode(&rec); err != nil {
			return nil, err
		}
		return []RawRecord{rec}, nil
	}
	var recs []RawRecord
	if err := r.Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Do sends the request. 401 triggers exactly one token refresh and retry;
// a second 401 is ErrAuth. 429, 5xx and transport failures back off
// exponentially (honoring Retry-After) up to the attempt bound, then fail
// with *errs.TransientError. Other 4xx fail with *errs.RequestError.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := s.resolve(req.Path, req.Params)
	if err != nil {
		return nil, err
	}

	body := req.RawBody
	if body == nil && req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	refreshed := false
	attempt := 0
	for {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		token, err := s.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := s.send(ctx, req, target, body, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= s.maxAttempts {
				return nil, &errs.TransientError{Attempts: attempt, Err: err}
			}
			wait := s.backoff(attempt)
			s.logger.Warn("request failed, retrying",
				zap.String("method", req.Method), zap.String("url", target),
				zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
			if err := s.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, fmt.Errorf("%w: %s %s still unauthorized after token refresh", errs.ErrAuth, req.Method, target)
			}
			refreshed = true
			attempt-- // the refresh retry is not a transient attempt
			s.logger.Debug("unauthorized, refreshing token", zap.String("url", target))
			s.tokens.Invalidate(token)
			continue

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if attempt >= s.maxAttempts {
				return nil, &errs.TransientError{StatusCode: resp.StatusCode, Attempts: attempt}
			}
			wait, fromServer := retryAfter(resp.Header, s.now())
			if !fromServer {
				wait = s.backoff(attempt)
			}
			s.logger.Warn("service unavailable, retrying",
				zap.String("method", req.Method), zap.String("url", target),
				zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt), zap.Duration("wait", wait))
			if resp.StatusCode == http.StatusTooManyRequests {
				// Pause every caller sharing this session, not just this one.
				s.limiter.Defer(wait)
				continue
			}
			if err := s.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 400:
			return nil, &errs.RequestError{
				StatusCode: resp.StatusCode,
				Method:     req.Method,
				URL:        target,
				Body:       truncateBody(resp.Body),
			}
		}

		return resp, nil
	}
}

// Get is shorthand for a GET request.
func (s *Session) Get(ctx context.Context, path string, params url.Values, accept string) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params, Accept: accept})
}

func (s *Session) send(ctx context.Context, req Request, target string, body []byte, token string) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}
	if s.devToken != "" {
		httpReq.Header.Set("Development-Token", s.devToken)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if body != nil {
		ct := req.ContentType
		switch {
		case ct != "":
		case req.RawBody != nil:
			ct = "application/octet-stream"
		default:
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// resolve joins a relative path with the base URL and merges params.
func (s *Session) resolve(path string, params url.Values) (string, error) {
	var target string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	} else {
		target = s.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(params) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", target, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// backoff returns base * 2^(attempt-1), capped.
func (s *Session) backoff(attempt int) time.Duration {
	d := s.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.backoffMax {
			return s.backoffMax
		}
	}
	if d > s.backoffMax {
		return s.backoffMax
	}
	return d
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
