// Package metrics provides Prometheus metrics for the recommendation service
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RecommendDuration and Requests
const (
	OutcomeOK            = "ok"
	OutcomeCallerError   = "caller_error"
	OutcomeProviderError = "provider_error"
	OutcomeStoreError    = "store_error"
	OutcomeCanceled      = "canceled"
	OutcomeInternal      = "internal"
)

// Metrics holds all Prometheus metrics of the service
type Metrics struct {
	registry *prometheus.Registry

	Requests           *prometheus.CounterVec
	RecommendDuration  *prometheus.HistogramVec
	NodeDuration       *prometheus.HistogramVec
	SkippedEmbeddings  *prometheus.CounterVec
	Candidates         prometheus.Histogram
	ExternalRetries    *prometheus.CounterVec
	CircuitBreakerOpen *prometheus.GaugeVec
	Interactions       prometheus.Counter
	RevokedTokens      prometheus.Counter
}

// New creates all metrics on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by scene and outcome",
		}, []string{"scene", "outcome"}),
		RecommendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "End-to-end recommendation latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"scene", "outcome"}),
		NodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommend_node_duration_seconds",
			Help:    "Latency of a single pipeline node",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"node", "type"}),
		SkippedEmbeddings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_skipped_embeddings_total",
			Help: "Items skipped because their embedding was missing or malformed",
		}, []string{"stage"}),
		Candidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommend_candidates",
			Help:    "Number of candidates recalled per request",
			Buckets: prometheus.LinearBuckets(0, 50, 11),
		}),
		ExternalRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recommend_external_retries_total",
			Help: "Retries of calls to the embedding provider and the store",
		}, []string{"target"}),
		CircuitBreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recommend_circuit_breaker_open",
			Help: "1 when the named circuit breaker is open",
		}, []string{"name"}),
		Interactions: f.NewCounter(prometheus.CounterOpts{
			Name: "recommend_interactions_recorded_total",
			Help: "Interactions appended to the interaction log",
		}),
		RevokedTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "recommend_revoked_tokens_total",
			Help: "Bearer tokens revoked by logout",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished recommendation request
func (m *Metrics) ObserveRequest(scene, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(scene, outcome).Inc()
	m.RecommendDuration.WithLabelValues(scene, outcome).Observe(elapsed.Seconds())
}

// ObserveNode records the latency of one node execution
func (m *Metrics) ObserveNode(name, typ string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.NodeDuration.WithLabelValues(name, typ).Observe(elapsed.Seconds())
}

// AddSkipped counts malformed embeddings dropped at the given stage
func (m *Metrics) AddSkipped(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedEmbeddings.WithLabelValues(stage).Add(float64(n))
}

// ObserveCandidates records the size of the recalled candidate set
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.Candidates.Observe(float64(n))
}

// IncRetry counts one retried call
func (m *Metrics) IncRetry(target string) {
	if m == nil {
		return
	}
	m.ExternalRetries.WithLabelValues(target).Inc()
}

// SetBreakerOpen publishes the state of a circuit breaker
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerOpen.WithLabelValues(name).Set(v)
}

// IncInteractions counts one recorded interaction
func (m *Metrics) IncInteractions() {
	if m == nil {
		return
	}
	m.Interactions.Inc()
}

// IncRevoked counts one revoked token
func (m *Metrics) IncRevoked() {
	if m == nil {
		return
	}
	m.RevokedTokens.Inc()
}
