// Package metrics holds the prometheus collectors for recommendation runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resource_matcher"

// Fallback reasons.
const (
	ReasonDisabled = "disabled"
	ReasonTimeout  = "timeout"
	ReasonError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	runs               *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	recommended        prometheus.Histogram
	httpRequests       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_runs_total",
			Help:      "Recommendation runs by the path that produced the result.",
		}, []string{"kind", "source"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Times the deterministic scorer replaced the generative path.",
		}, []string{"kind", "reason"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of generative service calls including parsing.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 15, 20, 30},
		}, []string{"kind"}),
		recommended: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_returned",
			Help:      "Number of recommendations returned per run.",
			Buckets:   prometheus.LinearBuckets(0, 1, 9),
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
	}
}

func (m *Metrics) ObserveRun(kind, source string, recommended int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, source).Inc()
	if kind == "recommendations" {
		m.recommended.Observe(float64(recommended))
	}
}

func (m *Metrics) ObserveFallback(kind, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) ObserveGeneration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(route, method, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
