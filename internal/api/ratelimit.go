package api

import (
	"net/http"
	"sync"
	"time"
)

// LoginLimiter throttles authentication attempts per client address with a
// token bucket. Credential endpoints are the only unauthenticated surface, so
// they get their own limiter instead of a gateway-wide one.
type LoginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*loginBucket
	burst   int
	window  time.Duration
}

type loginBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewLoginLimiter creates a limiter allowing burst attempts per window for
// each client address
func NewLoginLimiter(burst int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		buckets: make(map[string]*loginBucket),
		burst:   burst,
		window:  window,
	}
}

// Allow reports whether another attempt from the address is permitted
func (l *LoginLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[addr]
	if !ok {
		bucket = &loginBucket{tokens: l.burst, lastRefill: now}
		l.buckets[addr] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill)
	if elapsed >= l.window {
		bucket.tokens = l.burst
		bucket.lastRefill = now
	} else if refill := int(elapsed.Nanoseconds() * int64(l.burst) / l.window.Nanoseconds()); refill > 0 {
		bucket.tokens += refill
		if bucket.tokens > l.burst {
			bucket.tokens = l.burst
		}
		bucket.lastRefill = now
	}

	if bucket.tokens <= 0 {
		return false
	}
	bucket.tokens--
	return true
}

// StartCleanup evicts idle buckets periodically so the map stays bounded
func (l *LoginLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			l.cleanup()
		}
	}()
}

func (l *LoginLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	for addr, bucket := range l.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(l.buckets, addr)
		}
	}
}

// rateLimitMiddleware rejects over-limit authentication attempts before they
// reach the credential check
func (h *Handlers) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientIP(r)
		if !h.loginLimiter.Allow(addr) {
			h.logger.Security("login_rate_limited", addr, map[string]interface{}{
				"path": r.URL.Path,
			})
			h.writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
