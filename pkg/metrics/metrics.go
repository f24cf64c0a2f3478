// Package metrics exposes Prometheus instruments for the HTTP surface and
// for the rate limiter, entitlement and billing components.
//
// A *Metrics value satisfies the Recorder interfaces of ratelimit,
// entitlement and billing, so it can be handed to each of them directly.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
)

const namespace = "memorialkit"

// Metrics holds all Prometheus instruments.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Domain metrics
	RateLimitDecisions   *prometheus.CounterVec
	EntitlementDecisions *prometheus.CounterVec
	QuotaOvershoots      *prometheus.CounterVec
	CheckoutSessions     *prometheus.CounterVec
	CheckoutDuration     *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all instruments on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Rate limiter decisions by profile and outcome",
			},
			[]string{"profile", "outcome"},
		),
		EntitlementDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entitlement",
				Name:      "decisions_total",
				Help:      "Entitlement decisions by reason",
			},
			[]string{"reason"},
		),
		QuotaOvershoots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entitlement",
				Name:      "overshoots_total",
				Help:      "Memorials created past the plan limit by concurrent requests",
			},
			[]string{"plan"},
		),
		CheckoutSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "checkout_sessions_total",
				Help:      "Checkout session attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "checkout_duration_seconds",
				Help:      "Time spent opening a checkout session",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsActive,
		m.RateLimitDecisions,
		m.EntitlementDecisions,
		m.QuotaOvershoots,
		m.CheckoutSessions,
		m.CheckoutDuration,
	)

	return m
}

// RateLimitDecision implements ratelimit.Recorder.
func (m *Metrics) RateLimitDecision(profile string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitDecisions.WithLabelValues(profile, outcome).Inc()
}

// EntitlementDecision implements entitlement.Recorder.
func (m *Metrics) EntitlementDecision(reason entitlement.Reason) {
	m.EntitlementDecisions.WithLabelValues(string(reason)).Inc()
}

// Overshoot implements entitlement.Recorder.
func (m *Metrics) Overshoot(planID string) {
	m.QuotaOvershoots.WithLabelValues(planID).Inc()
}

// CheckoutSession implements billing.Recorder.
func (m *Metrics) CheckoutSession(outcome string, d time.Duration) {
	m.CheckoutSessions.WithLabelValues(outcome).Inc()
	m.CheckoutDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
