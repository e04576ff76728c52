package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the outbound rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	// Zero or negative disables limiting.
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultRateLimit keeps a misbehaving caller from hammering the API while
// staying well clear of anything an interactive session would hit.
var DefaultRateLimit = RateLimitConfig{
	RequestsPerWindow: 300,
	Window:            time.Minute,
	Burst:             50,
}

// Enabled reports whether the config limits anything.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

// ParseRateLimitFromEnv reads rate limit configuration from environment
// variables following the pattern RATELIMIT_{field}, e.g.
// RATELIMIT_REQUESTS, RATELIMIT_WINDOW_SEC, RATELIMIT_BURST.
func ParseRateLimitFromEnv(defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// RateLimit delays outbound requests so they stay inside config. Requests
// wait for a token rather than failing; a cancelled request context aborts
// the wait.
func RateLimit(config RateLimitConfig) Middleware {
	if !config.Enabled() {
		return nil
	}

	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()
	burst := max(config.Burst, 1)
	limiter := rate.NewLimiter(rate.Limit(ratePerSecond), burst)

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()

			if !limiter.Allow() {
				slogx.FromContext(ctx).Debug("rate limit: waiting for token",
					"method", req.Method,
					"path", req.URL.Path,
				)
				if err := limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limit wait: %w", err)
				}
			}

			return next.RoundTrip(req)
		})
	}
}
