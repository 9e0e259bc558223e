package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the token state for a single key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	rate       int
}

// Limiter implements a token-bucket rate limiter keyed by arbitrary string
// identifiers (here, client IPs on the auth endpoints).
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	defaultRate int
	window      time.Duration
	now         func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows defaultRate requests per window.
func New(defaultRate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets:     make(map[string]*bucket),
		defaultRate: defaultRate,
		window:      window,
		now:         time.Now,
	}
}

// getBucket returns the bucket for key, creating one if it doesn't exist.
// Must be called with l.mu held.
func (l *Limiter) getBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(l.defaultRate),
			lastRefill: l.now(),
			rate:       l.defaultRate,
		}
		l.buckets[key] = b
	}
	return b
}

// refill adds tokens to the bucket based on elapsed time since the last
// refill. Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	refillRate := float64(b.rate) / l.window.Seconds()
	b.tokens += elapsed * refillRate
	if b.tokens > float64(b.rate) {
		b.tokens = float64(b.rate)
	}
	b.lastRefill = now
}

// Allow checks whether a request identified by key is permitted. Returns true
// and consumes one token when allowed, false when the limit is exceeded. A
// zero default rate disables limiting.
func (l *Limiter) Allow(key string) bool {
	if l.defaultRate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
