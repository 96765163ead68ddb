package obs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fares"

// Source task outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Metrics holds the Prometheus metrics for the service. Each instance owns
// its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Requests         prometheus.Counter
	CacheHits        prometheus.Counter
	BaselineMissing  prometheus.Counter
	SourceOutcomes   *prometheus.CounterVec
	SourceDuration   *prometheus.HistogramVec
	RecordsExtracted *prometheus.CounterVec
	RecordsDiscarded *prometheus.CounterVec
	SearchDuration   prometheus.Histogram

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of search results served from cache",
		}),
		BaselineMissing: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "baseline_missing_total",
			Help:      "Total number of searches where the baseline source yielded no price",
		}),
		SourceOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "tasks_total",
			Help:      "Total number of per-source tasks by outcome",
		}, []string{"source", "outcome"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "task_duration_seconds",
			Help:      "Per-source task duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"source"}),
		RecordsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "records_total",
			Help:      "Total number of flight records extracted by source",
		}, []string{"source"}),
		RecordsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "records_discarded_total",
			Help:      "Total number of candidate records discarded by source and reason",
		}, []string{"source", "reason"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end aggregated search duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		logger: logger,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.Requests.Inc()
}

// IncCacheHits increments the cache hits counter.
func (m *Metrics) IncCacheHits() {
	m.CacheHits.Inc()
}

// IncBaselineMissing records a search without a baseline price.
func (m *Metrics) IncBaselineMissing() {
	m.BaselineMissing.Inc()
}

// ObserveSource records the outcome and duration of one source task.
func (m *Metrics) ObserveSource(source, outcome string, d time.Duration) {
	m.SourceOutcomes.WithLabelValues(source, outcome).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddExtracted adds n extracted records for source.
func (m *Metrics) AddExtracted(source string, n int) {
	m.RecordsExtracted.WithLabelValues(source).Add(float64(n))
}

// IncDiscarded records one discarded candidate.
func (m *Metrics) IncDiscarded(source, reason string) {
	m.RecordsDiscarded.WithLabelValues(source, reason).Inc()
}

// ObserveSearch records an end-to-end search duration.
func (m *Metrics) ObserveSearch(d time.Duration) {
	m.SearchDuration.Observe(d.Seconds())
}

// MetricsHandler returns a handler for /metrics requests in Prometheus format.
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(m.logger.Handler(), slog.LevelError),
	})
}

// HealthResponse is the body served by the health endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler returns a handler for / and /health requests.
func HealthHandler(service, version string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		resp := HealthResponse{
			Status:    "healthy",
			Service:   service,
			Version:   version,
			Timestamp: time.Now().UTC(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	}
}
