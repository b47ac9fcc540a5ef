package mendeley

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeTokens hands out "token-N" and advances N when the current token is
// invalidated.
type fakeTokens struct {
	mu        sync.Mutex
	n         int
	refreshes int
	err       error
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("token-%d", f.n), nil
}

func (f *fakeTokens) Invalidate(stale string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stale == fmt.Sprintf("token-%d", f.n) {
		f.n++
		f.refreshes++
	}
}

// sleepRecorder captures backoff waits instead of sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *sleepRecorder) Recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	tokens *fakeTokens
	sleeps *sleepRecorder
	client *Client
}

func newTestEnv(t *testing.T, handler http.Handler, opts ...SessionOption) *testEnv {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, tokens: &fakeTokens{}, sleeps: &sleepRecorder{}}
	base := []SessionOption{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(0),
		WithSleeper(env.sleeps.Sleep),
		WithSessionClock(func() time.Time { return testNow }),
	}
	session := NewSession(env.tokens, append(base, opts...)...)
	env.client = NewClient(session)
	return env
}

func (e *testEnv) session() *Session {
	return e.client.Session
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
