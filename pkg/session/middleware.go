package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/memorialkit/pkg/logger"
)

// TokenExtractorFunc pulls the raw token from a request.
type TokenExtractorFunc func(r *http.Request) string

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CookieTokenExtractor reads the token from the named cookie.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// FirstOf tries extractors in order and returns the first non-empty token.
func FirstOf(extractors ...TokenExtractorFunc) TokenExtractorFunc {
	return func(r *http.Request) string {
		for _, ex := range extractors {
			if token := ex(r); token != "" {
				return token
			}
		}
		return ""
	}
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	extractor TokenExtractorFunc
	log       *slog.Logger
}

func WithExtractor(ex TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if ex != nil {
			c.extractor = ex
		}
	}
}

func WithLogger(log *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Middleware attaches the Identity of a valid token to the request context.
// Requests without a token, or with an invalid one, pass through anonymously.
func Middleware(m *Manager, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if m == nil {
		panic("session.Middleware: manager is required")
	}
	cfg := &middlewareConfig{
		extractor: FirstOf(BearerTokenExtractor, CookieTokenExtractor("session")),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cfg.extractor(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := m.Verify(token)
			if err != nil {
				cfg.log.DebugContext(r.Context(), "session token rejected",
					logger.Component("session"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

type unauthorizedBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Require rejects requests that carry no Identity with 401.
func Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				var body unauthorizedBody
				body.Error.Code = "unauthorized"
				body.Error.Message = http.StatusText(http.StatusUnauthorized)

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
