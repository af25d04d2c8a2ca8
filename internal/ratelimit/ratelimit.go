// Package ratelimit implements §4.D: per-route/IP/recipient token buckets
// and process-health-based overload shedding.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/config"
)

// Limiter is a keyed set of token buckets — one per (route-class, key) pair
// — built on golang.org/x/time/rate, following the keyed-limiter shape in
// tomtom215-cartographus/internal/auth/middleware.go.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter() *Limiter {
	l := &Limiter{buckets: make(map[string]*bucket)}
	return l
}

// Allow reports whether a request identified by key is admitted under rule.
// window/max are translated into a token bucket on golang.org/x/time/rate:
// burst = max, refilled at max tokens per window. Up to max requests pass
// at once, then one more every window/max, so within a single window more
// than max requests (up to about twice max) can pass; this is not a
// fixed-window counter.
func (l *Limiter) Allow(routeClass, key string, rule config.RateLimitRule) bool {
	if rule.Max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bucketKey := routeClass + "|" + key
	b, ok := l.buckets[bucketKey]
	if !ok {
		every := rule.Window / time.Duration(rule.Max)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), rule.Max)}
		l.buckets[bucketKey] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// Cleanup evicts buckets untouched for longer than ttl, bounding memory for
// long-running processes with many transient (ip, room) keys.
func (l *Limiter) Cleanup(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// CheckOrReject is the §6/§7 convenience wrapper: returns a 429 apierr.Error
// carrying the rule's window as Retry-After when the bucket is exhausted.
func CheckOrReject(l *Limiter, routeClass, key string, rule config.RateLimitRule) error {
	if !l.Allow(routeClass, key, rule) {
		return apierr.RateLimitedf(fmt.Sprintf("rate limit exceeded for %s", routeClass), int(rule.Window.Seconds()))
	}
	return nil
}
