package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/verve-web/verve/pkg/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// BucketName identifies the rate limit bucket. Configurations sharing a
	// BucketName share the same limit.
	BucketName string

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Window is the time window for the limit.
	Window time.Duration

	// KeyExtractor derives the per-client key. Defaults to the client IP
	// from the request context (see ClientIPMiddleware), falling back to
	// RemoteAddr.
	KeyExtractor func(*http.Request) (string, error)

	// ExceededHandler is invoked when the limit is exceeded. If nil, a
	// default 429 Too Many Requests response is sent.
	ExceededHandler http.Handler
}

// RateLimiter defines the interface for rate limiting algorithms.
// Allow reports whether a request identified by key may proceed, along with
// the remaining allowance and the time until the window resets.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// UberRateLimiter implements RateLimiter on Uber's leaky-bucket limiter,
// paired with a windowed counter so limits are enforced exactly per window.
type UberRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	limiter     ratelimit.Limiter
	windowStart time.Time
	count       int
}

// NewUberRateLimiter creates a new rate limiter using Uber's ratelimit library
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{buckets: make(map[string]*rateBucket)}
}

// Allow checks if a request identified by key is allowed under the limit.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	if window <= 0 {
		window = time.Second
	}
	rps := int(float64(limit) / window.Seconds())
	if rps < 1 {
		rps = 1
	}

	u.mu.Lock()
	bucket, ok := u.buckets[key]
	if !ok {
		bucket = &rateBucket{limiter: ratelimit.New(rps)}
		u.buckets[key] = bucket
	}

	now := time.Now()
	if bucket.windowStart.IsZero() || now.Sub(bucket.windowStart) > window {
		bucket.windowStart = now
		bucket.count = 0
	}
	bucket.count++
	count := bucket.count
	reset := window - now.Sub(bucket.windowStart)
	limiter := bucket.limiter
	u.mu.Unlock()

	if count > limit {
		return false, 0, reset
	}

	// Smooth accepted requests to the bucket rate.
	limiter.Take()
	return true, limit - count, reset
}

// RateLimit creates a middleware that enforces the given rate limit config
// using the provided limiter.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := rateLimitKey(r, config)
			if err != nil {
				logger.Error("Rate limit key extraction failed",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			allowed, remaining, reset := limiter.Allow(config.BucketName+":"+key, config.Limit, config.Window)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("bucket", config.BucketName),
					zap.String("key", key),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
				if config.ExceededHandler != nil {
					config.ExceededHandler.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request, config *RateLimitConfig) (string, error) {
	if config.KeyExtractor != nil {
		return config.KeyExtractor(r)
	}
	if ip := ClientIP(r); ip != "" {
		return ip, nil
	}
	return r.RemoteAddr, nil
}
