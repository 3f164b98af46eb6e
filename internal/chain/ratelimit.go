package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles node requests with a token bucket per method, plus
// a shared bucket so the sum over all methods stays under the node's limit.
type RateLimiter struct {
	mu        sync.RWMutex
	methods   map[string]*rate.Limiter
	shared    *rate.Limiter
	perMethod rate.Limit
	burst     int
}

// NewRateLimiter creates a limiter allowing ratePerSecond requests overall and
// per method, with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		methods:   make(map[string]*rate.Limiter),
		shared:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		perMethod: rate.Limit(ratePerSecond),
		burst:     burst,
	}
}

// DefaultRateLimiter allows 10 requests/second with a burst of 20.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(10, 20)
}

// Allow reports whether a request for method may proceed now.
// It consumes a token from the method bucket and, if granted, the shared one.
func (r *RateLimiter) Allow(method string) bool {
	return r.limiter(method).Allow() && r.shared.Allow()
}

// Wait blocks until a request for method is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, method string) error {
	if err := r.limiter(method).Wait(ctx); err != nil {
		return err
	}
	return r.shared.Wait(ctx)
}

func (r *RateLimiter) limiter(method string) *rate.Limiter {
	r.mu.RLock()
	l, ok := r.methods[method]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok = r.methods[method]; ok {
		return l
	}
	l = rate.NewLimiter(r.perMethod, r.burst)
	r.methods[method] = l
	return l
}
