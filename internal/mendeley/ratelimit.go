package mendeley

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests with a token bucket and honors a
// server-imposed pause after a 429.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// rps <= 0 disables the token bucket.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any pause set by Defer.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := retryAt.Sub(r.now()); d > 0 {
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}

	return r.limiter.Wait(ctx)
}

// Defer pauses all requests for d. A later deadline never shortens an
// existing one.
func (r *RateLimiter) Defer(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(d)
	if until.After(r.retryAt) {
		r.retryAt = until
	}
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
