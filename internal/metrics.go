package internal

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes recorded by Metrics
const (
	OutcomeChart         = "chart"
	OutcomeImageNotFound = "image_not_found"
	OutcomeBackendError  = "backend_error"
	OutcomeTransport     = "transport_error"
	OutcomeStale         = "stale"
)

// Metrics holds the collectors exposed on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	submissions    *prometheus.CounterVec
	imageFailures  prometheus.Counter
	backendLatency *prometheus.HistogramVec
	openForms      prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartform",
			Name:      "submissions_total",
			Help:      "Submission cycles by language and outcome.",
		}, []string{"language", "outcome"}),
		imageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chartform",
			Name:      "image_load_failures_total",
			Help:      "Chart images the browser reported as failing to load.",
		}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartform",
			Name:      "backend_request_seconds",
			Help:      "Latency of requests to the execution backend.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"language"}),
		openForms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chartform",
			Name:      "open_forms",
			Help:      "Forms currently held in memory.",
		}),
	}
	m.registry.MustRegister(m.submissions, m.imageFailures, m.backendLatency, m.openForms)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSubmission counts one finished submission
func (m *Metrics) ObserveSubmission(lang Language, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(lang), outcome).Inc()
}

// ObserveImageFailure counts one image load failure
func (m *Metrics) ObserveImageFailure() {
	if m == nil {
		return
	}
	m.imageFailures.Inc()
}

// ObserveBackend records the duration of one backend request
func (m *Metrics) ObserveBackend(lang Language, d time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(string(lang)).Observe(d.Seconds())
}

// SetOpenForms reports the current store size
func (m *Metrics) SetOpenForms(n int) {
	if m == nil {
		return
	}
	m.openForms.Set(float64(n))
}
