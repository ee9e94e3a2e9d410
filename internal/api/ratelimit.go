package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket meters one client. The level refills continuously with
// elapsed time up to the burst capacity.
type tokenBucket struct {
	mu       sync.Mutex
	level    float64
	capacity float64
	rate     float64   // tokens per second
	touched  time.Time // last credit, doubles as the idle marker
}

func newTokenBucket(capacity, rate float64) *tokenBucket {
	return &tokenBucket{
		level:    capacity,
		capacity: capacity,
		rate:     rate,
		touched:  time.Now(),
	}
}

// credit adds the tokens earned since the last credit. Callers hold mu.
func (tb *tokenBucket) credit(now time.Time) {
	tb.level = min(tb.capacity, tb.level+now.Sub(tb.touched).Seconds()*tb.rate)
	tb.touched = now
}

// take consumes one token when available and reports the bucket state after
// the attempt: whole tokens left and when the bucket is full again. One
// locked call yields both the decision and the header values, so they
// cannot disagree.
func (tb *tokenBucket) take() (ok bool, remaining int, reset time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.credit(now)
	if tb.level >= 1 {
		tb.level--
		ok = true
	}
	remaining = int(tb.level)
	reset = now
	if tb.level < tb.capacity {
		wait := (tb.capacity - tb.level) / tb.rate
		reset = now.Add(time.Duration(wait * float64(time.Second)))
	}
	return ok, remaining, reset
}

// RateLimiter applies per-client token bucket rate limiting. Idle buckets
// are dropped by a background sweep.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	config  RateLimiterConfig
	idleTTL time.Duration
}

// NewRateLimiter creates a rate limiter and starts its cleanup sweep.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  config,
		idleTTL: 5 * time.Minute,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) getBucket(ip string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[ip]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists := rl.buckets[ip]; exists {
		return bucket
	}

	bucket = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerMinute)/60.0)
	rl.buckets[ip] = bucket
	return bucket
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.sweep(time.Now())
	}
}

// sweep drops buckets that have not been touched within idleTTL.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.touched) > rl.idleTTL
		bucket.mu.Unlock()
		if idle {
			delete(rl.buckets, ip)
		}
	}
}

// Allow checks if a request from the given client should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _, _ := rl.getBucket(ip).take()
	return ok
}

// Middleware applies rate limiting per client IP. Refused requests get a
// 429 with Retry-After and the usual X-RateLimit headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, reset := rl.getBucket(clientIP(r)).take()

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, trusting X-Forwarded-For and
// X-Real-IP from upstream proxies before falling back to RemoteAddr. Only
// values that parse as IPs are trusted.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return "unknown"
}
