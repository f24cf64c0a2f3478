package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/memorialkit/pkg/logger"
)

// LimitReachedFunc writes the response for a denied request.
type LimitReachedFunc func(w http.ResponseWriter, r *http.Request, result *Result)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onLimitReached LimitReachedFunc
	skipFunc       func(r *http.Request) bool
}

// WithOnLimitReached replaces the default 429 JSON response.
func WithOnLimitReached(fn LimitReachedFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onLimitReached = fn
		}
	}
}

// WithSkipFunc bypasses the limiter for requests where fn returns true.
func WithSkipFunc(fn func(r *http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.skipFunc = fn
	}
}

// Middleware throttles requests under the named profile.
// It fails open: a request with no key, or one whose check fails, is logged and let through.
// The profile name is resolved at construction and panics if unknown.
func Middleware(limiter *Limiter, profile string, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil {
		panic("ratelimit.Middleware: limiter is required")
	}
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}
	if _, err := limiter.Profiles().Get(profile); err != nil {
		panic("ratelimit.Middleware: " + err.Error())
	}

	cfg := &middlewareConfig{onLimitReached: DefaultLimitReached}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skipFunc != nil && cfg.skipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := keyFunc(r)
			if key == "" {
				limiter.log.WarnContext(ctx, "rate limit key missing, request not throttled",
					logger.Component("ratelimit"),
					logger.Profile(profile),
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Check(ctx, key, profile)
			if err != nil {
				limiter.log.WarnContext(ctx, "rate limit check failed, request not throttled",
					logger.Component("ratelimit"),
					logger.Profile(profile),
					logger.RateKey(key),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w, result)

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(result)))
				cfg.onLimitReached(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the X-RateLimit-* headers for result.
func SetHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below 1.
func RetryAfterSeconds(result *Result) int {
	secs := int(math.Ceil(result.RetryAfter.Seconds()))
	return max(1, secs)
}

type limitedResponse struct {
	Error             limitedError `json:"error"`
	RetryAfterSeconds int          `json:"retryAfterSeconds"`
}

type limitedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DefaultLimitReached writes a 429 with a JSON body carrying the retry hint.
func DefaultLimitReached(w http.ResponseWriter, r *http.Request, result *Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(limitedResponse{
		Error: limitedError{
			Code:    "rate_limited",
			Message: "Too many requests. Please try again later.",
		},
		RetryAfterSeconds: RetryAfterSeconds(result),
	})
}
