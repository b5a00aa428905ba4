package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	// RequestsPerSecond is the number of requests allowed per second.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size (bucket capacity).
	BurstSize int
	// KeyFunc extracts the rate limit key from the request.
	KeyFunc func(r *http.Request) string
	// ExcludeFunc determines if a request should be excluded from rate limiting.
	ExcludeFunc func(r *http.Request) bool
	// OnLimitExceeded is called when the rate limit is exceeded.
	OnLimitExceeded func(r *http.Request, key string)
	// CleanupInterval is how often to clean up expired entries.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns defaults sized for map panning, which
// fires a burst of pointer events per gesture.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		KeyFunc:           IPKeyFunc,
		ExcludeFunc:       HealthPaths,
		CleanupInterval:   time.Minute,
	}
}

// HealthPaths excludes the health endpoints so probes are never throttled.
func HealthPaths(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/health")
}

// IPKeyFunc extracts the client IP address. Behind a load balancer the
// first X-Forwarded-For entry is the client.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(client)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// TokenBucket implements the token bucket algorithm.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed and consumes a token if so.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill tokens based on elapsed time
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	// Check if we have a token available
	if b.tokens >= 1 {
		b.tokens--
		return true
	}

	return false
}

// Tokens returns the current number of available tokens.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill first
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	tokens := b.tokens + elapsed*b.refillRate
	if tokens > b.maxTokens {
		tokens = b.maxTokens
	}

	return tokens
}

// RateLimiter implements rate limiting using token buckets.
type RateLimiter struct {
	config  RateLimiterConfig
	buckets sync.Map // map[string]*TokenBucket
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = IPKeyFunc
	}
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	// Start cleanup goroutine
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// getBucket returns or creates a bucket for the given key.
func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	if bucket, ok := rl.buckets.Load(key); ok {
		return bucket.(*TokenBucket)
	}

	bucket := NewTokenBucket(float64(rl.config.BurstSize), rl.config.RequestsPerSecond)
	actual, _ := rl.buckets.LoadOrStore(key, bucket)
	return actual.(*TokenBucket)
}

// Allow checks if a request should be allowed.
func (rl *RateLimiter) Allow(r *http.Request) bool {
	if rl.config.ExcludeFunc != nil && rl.config.ExcludeFunc(r) {
		return true
	}

	key := rl.config.KeyFunc(r)
	bucket := rl.getBucket(key)

	if !bucket.Allow() {
		if rl.config.OnLimitExceeded != nil {
			rl.config.OnLimitExceeded(r, key)
		}
		return false
	}

	return true
}

// cleanupLoop periodically removes old buckets.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes buckets that are full (not recently used).
func (rl *RateLimiter) cleanup() {
	rl.buckets.Range(func(key, value interface{}) bool {
		bucket := value.(*TokenBucket)
		// If bucket is full, it hasn't been used recently
		if bucket.Tokens() >= float64(rl.config.BurstSize)*0.99 {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Close stops the rate limiter.
func (rl *RateLimiter) Close() {
	rl.cancel()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.ExcludeFunc != nil && rl.config.ExcludeFunc(r) {
			next.ServeHTTP(w, r)
			return
		}
		allowed := rl.Allow(r)

		bucket := rl.getBucket(rl.config.KeyFunc(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.BurstSize))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(bucket.Tokens(), 'f', 0, 64))

		if !allowed {
			w.Header().Set("Retry-After", "1")
			apperrors.WriteError(w, apperrors.RateLimited(), "")
			return
		}

		next.ServeHTTP(w, r)
	})
}
