// Package ratelimit enforces a per-tool, per-identity, per-tenant
// token bucket over tool invocations.
package ratelimit

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

const defaultTenant = "default_tenant"

// Limiter is a keyed rate limiter: each distinct (tool, identity,
// tenant) triple gets its own independent token bucket.
type Limiter struct {
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Limiter, or returns nil if rate limiting should be
// disabled (rps <= 0 or burst == 0).
func New(rps float64, burst int) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &Limiter{
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Check reports whether the call identified by tool/identity/tenantID
// is allowed under its bucket. A non-empty tenantID is used verbatim;
// an empty one falls back to "default_tenant".
func (l *Limiter) Check(tool, identity, tenantID string) error {
	if l == nil {
		return nil
	}
	if tenantID == "" {
		tenantID = defaultTenant
	}
	key := tool + "|" + identity + "|" + tenantID

	limiter := l.limiterFor(key)
	if limiter.Allow() {
		return nil
	}
	return fmt.Errorf("rate limit exceeded for tool=%s, identity=%s: rate limit exceeded", tool, identity)
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.limiters[key]; ok {
		return existing
	}

	// Round the configured rps up to the next integer refill rate; a
	// fractional rps such as 0.5 refills at 1 token per second.
	perSecond := rate.Limit(math.Ceil(l.rps))
	limiter := rate.NewLimiter(perSecond, l.burst)
	l.limiters[key] = limiter
	return limiter
}
