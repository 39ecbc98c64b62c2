package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IndexerMetrics struct {
	registry *prometheus.Registry

	rebuildTotal    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuildInFlight prometheus.Gauge
	itemsTotal      *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	rebuildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "rebuild_total",
			Help:      "Total index rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "rebuild_duration_seconds",
			Help:      "Index rebuild duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	rebuildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "rebuild_in_flight",
			Help:      "Number of in-flight index rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "items_total",
			Help:      "Total indexed items by modality.",
		},
		[]string{"service", "modality"},
	)
	skippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "skipped_total",
			Help:      "Total items skipped during indexing by reason.",
		},
		[]string{"service", "reason"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signrag",
			Subsystem: "indexer",
			Name:      "queue_lag_seconds",
			Help:      "Delay between corpus build and index rebuild start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(rebuildTotal, rebuildDuration, rebuildInFlight, itemsTotal, skippedTotal, queueLag)

	return &IndexerMetrics{
		registry:        registry,
		rebuildTotal:    rebuildTotal,
		rebuildDuration: rebuildDuration,
		rebuildInFlight: rebuildInFlight,
		itemsTotal:      itemsTotal,
		skippedTotal:    skippedTotal,
		queueLag:        queueLag,
	}
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) StartRebuild() {
	m.rebuildInFlight.Inc()
}

func (m *IndexerMetrics) FinishRebuild(service string, duration time.Duration, err error) {
	m.rebuildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.rebuildTotal.WithLabelValues(service, status).Inc()
	m.rebuildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *IndexerMetrics) RecordIndexedItems(service, modality string, count int) {
	if count <= 0 {
		return
	}
	m.itemsTotal.WithLabelValues(service, modality).Add(float64(count))
}

func (m *IndexerMetrics) RecordSkippedItems(service, reason string, count int) {
	if count <= 0 {
		return
	}
	m.skippedTotal.WithLabelValues(service, reason).Add(float64(count))
}

func (m *IndexerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
