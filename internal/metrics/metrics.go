package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const namespace = "telemetry_core"

const (
	KindMetric = "metric"
	KindLog    = "log"
)

// Metrics holds the self-observability collectors of the service. Each instance owns its
// registry so tests and multiple servers in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	SpansRecorded     *prometheus.CounterVec
	SpanStoreFailures prometheus.Counter

	ItemsAccepted  *prometheus.CounterVec
	ItemsDropped   *prometheus.CounterVec
	BatchesFlushed *prometheus.CounterVec
	FlushFailures  *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewMetrics(serviceName string, enableDefaultCollectors bool) *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, registry)
	if enableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(wrapped)

	return &Metrics{
		Registry: registry,
		SpansRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spans_recorded_total",
				Help:      "Finished spans by status",
			},
			[]string{"status"},
		),
		SpanStoreFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "span_store_failures_total",
				Help:      "Finished spans that could not be persisted",
			},
		),
		ItemsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_accepted_total",
				Help:      "Items accepted into an ingestion queue",
			},
			[]string{"kind"},
		),
		ItemsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_dropped_total",
				Help:      "Items rejected because an ingestion queue was full or stopped",
			},
			[]string{"kind"},
		),
		BatchesFlushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_batches_flushed_total",
				Help:      "Batches handed to storage",
			},
			[]string{"kind"},
		),
		FlushFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_flush_failures_total",
				Help:      "Items that storage failed to persist",
			},
			[]string{"kind"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ingestion_queue_depth",
				Help:      "Items waiting in an ingestion queue",
			},
			[]string{"kind"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Query API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Query API latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
