package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuzzyscore"

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchRecords  prometheus.Counter
	batchDuration prometheus.Histogram
	cache         *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Single-record evaluations by mode.",
		}, []string{"mode"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Failed evaluations by error kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch aggregations by outcome.",
		}, []string{"outcome"}),
		batchRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_records_total",
			Help:      "Records scored by successful batches.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of batch aggregation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Evaluation cache lookups by result.",
		}, []string{"result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_reloads_total",
			Help:      "Engine reloads by outcome.",
		}, []string{"outcome"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected result feed clients.",
		}),
	}

	m.registry.MustRegister(
		m.evaluations, m.errors, m.batches, m.batchRecords, m.batchDuration,
		m.cache, m.reloads, m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveEvaluation(mode string) {
	m.evaluations.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// ObserveBatch records one aggregation. records is ignored on failure.
func (m *Metrics) ObserveBatch(records int, elapsed time.Duration, err error) {
	m.batchDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.batches.WithLabelValues("error").Inc()
		return
	}
	m.batches.WithLabelValues("ok").Inc()
	m.batchRecords.Add(float64(records))
}

func (m *Metrics) CacheHit() {
	m.cache.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	m.cache.WithLabelValues("miss").Inc()
}

func (m *Metrics) ObserveReload(err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
}

func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}
