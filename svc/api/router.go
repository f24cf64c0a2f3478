package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/memorialkit/pkg/httpserver"
	"github.com/dmitrymomot/memorialkit/pkg/logger"
	"github.com/dmitrymomot/memorialkit/pkg/metrics"
	"github.com/dmitrymomot/memorialkit/pkg/session"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the API router. Modules are optional and only
// mounted when provided; Sessions is required.
type RouterOptions struct {
	Log      *slog.Logger
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Checks   map[string]httpserver.CheckFunc

	Memorials    Mountable
	Subscription Mountable
	Billing      Mountable
}

// Router creates the root router: probes and metrics at the top level,
// resource modules under /api.
func Router(opts RouterOptions) chi.Router {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(log, opts.Checks))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(session.Middleware(opts.Sessions, session.WithLogger(log)))

		if opts.Memorials != nil {
			api.Mount("/memorials", opts.Memorials.Handle())
		}
		if opts.Subscription != nil {
			api.Mount("/subscription", opts.Subscription.Handle())
		}
		if opts.Billing != nil {
			api.Mount("/billing", opts.Billing.Handle())
		}
	})

	return r
}
