package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/memorialkit/pkg/logger"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness answers 200 as long as the process serves requests.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, healthResponse{Status: "alive"})
	}
}

// Readiness runs every named check concurrently, each bounded by
// DefaultCheckTimeout. It answers 200 when all pass and 503 otherwise.
func Readiness(log *slog.Logger, checks map[string]CheckFunc) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			failed  bool
		)

		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
				defer cancel()

				status := "ok"
				if err := check(ctx); err != nil {
					log.ErrorContext(r.Context(), "readiness check failed",
						logger.Component("httpserver"),
						slog.String("check", name),
						logger.Error(err),
					)
					status = "unavailable"
				}

				mu.Lock()
				results[name] = status
				if status != "ok" {
					failed = true
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if failed {
			writeHealth(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready", Checks: results})
			return
		}
		writeHealth(w, http.StatusOK, healthResponse{Status: "ready", Checks: results})
	}
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
