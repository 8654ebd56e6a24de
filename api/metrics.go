package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the Prometheus collectors of one server. Each server owns its
// registry, so tests can build many routers without duplicate registration.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	evaluations  *prometheus.CounterVec
	periodsTotal prometheus.Counter
	imports      *prometheus.CounterVec

	scenarios *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	const namespace = "fuelcast"
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern, method and status",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Evaluation and projection requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		periodsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluated_periods_total",
				Help:      "Periods evaluated across all requests",
			},
		),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "driver_set_imports_total",
				Help:      "Driver-set imports by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		scenarios: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scenarios",
				Help:      "Stored scenarios by type and lock state",
			},
			[]string{"type", "locked"},
		),
	}

	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.evaluations,
		m.periodsTotal,
		m.imports,
		m.scenarios,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency by chi route pattern, so ids
// in paths do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) evaluated(kind string, periods int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.evaluations.WithLabelValues(kind, outcome).Inc()
	m.periodsTotal.Add(float64(periods))
}

func (m *Metrics) imported(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.imports.WithLabelValues(mode, outcome).Inc()
}
