package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

// Metrics owns the registry served on /metrics by the API process. It also
// implements payables.Recorder.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	milestones      *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// NewMetrics builds a private registry with runtime, HTTP and payables
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "virements_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "virements_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"route"}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "virements_order_milestones_total",
			Help: "Payment order milestones reached (signature, banque, debit).",
		}, []string{"milestone"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "virements_order_reconciliations_total",
			Help: "Payment order reconciliations by whether anything was rewritten.",
		}, []string{"changed"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.milestones, m.reconciliations,
	)
	return m
}

// Handler serves the registry. A nil Metrics answers 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency per chi route pattern. The pattern
// is read after the handler ran, once routing has completed.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// OrderMilestone counts a payment order reaching milestone.
func (m *Metrics) OrderMilestone(milestone string) {
	if m != nil {
		m.milestones.WithLabelValues(milestone).Inc()
	}
}

// Reconciled counts one reconciliation run.
func (m *Metrics) Reconciled(changed bool) {
	if m != nil {
		m.reconciliations.WithLabelValues(strconv.FormatBool(changed)).Inc()
	}
}
