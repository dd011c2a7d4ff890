// Package ratelimit implements the read API's token-bucket rate limiting
// keyed by (endpoint, observer), per spec §4.6.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a mutex-guarded registry of per-(endpoint, observer) token
// buckets. Ratio-based allotment (requestsPerMinute, burst = the same
// count) is recreated lazily the first time a key is seen at a given rate;
// the in-process caches §5's "shared-resource policy" calls out (rate-limit
// buckets among them) are read-mostly once warm and updated via a coarse
// lock, matching the policy's own description.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds an empty Limiter.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether one more request for (endpoint, observerID) is
// permitted under its requests-per-minute budget.
func (l *Limiter) Allow(endpoint, observerID string, requestsPerMinute int) bool {
	if requestsPerMinute <= 0 {
		return true
	}
	key := endpoint + "|" + observerID
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
