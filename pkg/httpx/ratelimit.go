package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agrolink/agrolink/pkg/slogx"
)

// RateLimitConfig defines the rate limiting parameters for one window.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows that many requests to arrive back to back before the
	// steady rate applies. Defaults to RequestsPerWindow so a full window's
	// quota is available immediately.
	Burst int
	// Message is the client-facing 429 body message.
	Message string
}

// Limiter profiles per route group. Overridable via environment variables
// (RATELIMIT_{prefix}_REQUESTS / _WINDOW_SEC / _BURST), which keeps the
// windows tunable in tests and constrained deployments.
var (
	// GeneralLimit applies to the whole /api surface.
	GeneralLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            15 * time.Minute,
		Message:           "Too many requests from this IP, please try again later.",
	}

	// AuthLimit is the stricter window for authentication endpoints
	// (brute force prevention).
	AuthLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            15 * time.Minute,
		Message:           "Too many auth attempts from this IP, please try again later.",
	}

	// ContactLimit bounds the public contact form.
	ContactLimit = RateLimitConfig{
		RequestsPerWindow: 30,
		Window:            time.Hour,
		Message:           "Too many requests from this IP, please try again later.",
	}
)

func init() {
	GeneralLimit = ParseRateLimitFromEnv("GENERAL", GeneralLimit)
	AuthLimit = ParseRateLimitFromEnv("AUTH", AuthLimit)
	ContactLimit = ParseRateLimitFromEnv("CONTACT", ContactLimit)
}

// ParseRateLimitFromEnv reads rate limit overrides from environment
// variables following the pattern RATELIMIT_{prefix}_{field}.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// rateLimiter manages token buckets keyed by client address.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key.
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	// Fast path: limiter already exists
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters that have refilled their full burst, i.e.
// have been idle at least a whole window. Prevents unbounded growth from
// ephemeral client addresses.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitByIP creates a per-client-address rate limiting middleware with
// the given window configuration. Limiter state is per-process.
func RateLimitByIP(config RateLimitConfig) Middleware {
	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerWindow
	}

	// Token refill rate derived from the window quota.
	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	rl := &rateLimiter{
		rate:        rate.Limit(ratePerSecond),
		burst:       burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := ClientIP(r)
			limiter := rl.getLimiter(key)

			if !limiter.Allow() {
				// When the next token becomes available, without consuming it.
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteError(w, http.StatusTooManyRequests, config.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
