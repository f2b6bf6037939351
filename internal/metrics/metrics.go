// Package metrics exposes Prometheus instruments for the aggregation pipeline
// and a small health snapshot for the monitoring endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "desinews"

// Aggregation results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultEmpty = "empty"
)

// Source fetch outcomes.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Metrics owns its registry so several instances can coexist in tests. All
// recording methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	aggregations     *prometheus.CounterVec
	sourceFetches    *prometheus.CounterVec
	duration         prometheus.Histogram
	articlesReturned prometheus.Histogram
	cacheErrors      *prometheus.CounterVec

	mu            sync.RWMutex
	lastRunTime   time.Time
	lastErrorTime time.Time
	lastError     string
	isHealthy     bool
	now           func() time.Time
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		aggregations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Aggregation requests by cache result",
		}, []string{"result"}),
		sourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Upstream fetches by source and outcome",
		}, []string{"source", "status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of uncached aggregations",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		articlesReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_returned",
			Help:      "Articles returned per aggregation",
			Buckets:   []float64{0, 5, 10, 20, 30, 50, 100},
		}),
		cacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures by operation",
		}, []string{"op"}),
		isHealthy: true,
		now:       time.Now,
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordAggregation(result string, d time.Duration, articles int) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(result).Inc()
	if result != ResultHit {
		m.duration.Observe(d.Seconds())
	}
	m.articlesReturned.Observe(float64(articles))
	m.SetLastRun()
}

func (m *Metrics) RecordSourceFetch(source, status string) {
	if m == nil {
		return
	}
	m.sourceFetches.WithLabelValues(source, status).Inc()
}

func (m *Metrics) RecordCacheError(op string, err error) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
	if err != nil {
		m.SetError(err.Error())
	}
}

func (m *Metrics) SetLastRun() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRunTime = m.now()
	m.isHealthy = true
}

func (m *Metrics) SetError(err string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err
	m.lastErrorTime = m.now()
	m.isHealthy = false
}

func (m *Metrics) IsHealthy() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"last_run_time":   "",
		"last_error_time": "",
		"last_error":      m.lastError,
		"is_healthy":      m.isHealthy,
	}
	if !m.lastRunTime.IsZero() {
		stats["last_run_time"] = m.lastRunTime.Format(time.RFC3339)
	}
	if !m.lastErrorTime.IsZero() {
		stats["last_error_time"] = m.lastErrorTime.Format(time.RFC3339)
	}
	return stats
}
