package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal         *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
	retrievedEntries     *prometheus.HistogramVec
	noEvidenceTotal      *prometheus.CounterVec
	unsupportedClaims    *prometheus.CounterVec
	groundedAnswersTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "signrag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total handled queries by modality preference and status.",
		},
		[]string{"service", "preference", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signrag",
			Subsystem: "query",
			Name:      "stage_duration_seconds",
			Help:      "Query stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	retrievedEntries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signrag",
			Subsystem: "query",
			Name:      "retrieved_entries",
			Help:      "Distribution of retrieved entries per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	noEvidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "query",
			Name:      "no_evidence_total",
			Help:      "Total queries that retrieved no evidence.",
		},
		[]string{"service"},
	)
	unsupportedClaims := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "grounding",
			Name:      "unsupported_claims_total",
			Help:      "Total claims generated without supporting evidence.",
		},
		[]string{"service"},
	)
	groundedAnswersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signrag",
			Subsystem: "grounding",
			Name:      "answers_total",
			Help:      "Total grounded answers by audit outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		queryDuration,
		retrievedEntries,
		noEvidenceTotal,
		unsupportedClaims,
		groundedAnswersTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		queriesTotal:         queriesTotal,
		queryDuration:        queryDuration,
		retrievedEntries:     retrievedEntries,
		noEvidenceTotal:      noEvidenceTotal,
		unsupportedClaims:    unsupportedClaims,
		groundedAnswersTotal: groundedAnswersTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/signs/"):
		return "/v1/signs/{class_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, preference, status string, retrieved int, duration time.Duration) {
	if preference == "" {
		preference = "any"
	}
	m.queriesTotal.WithLabelValues(service, preference, status).Inc()
	m.queryDuration.WithLabelValues(service, "total").Observe(duration.Seconds())
	m.retrievedEntries.WithLabelValues(service).Observe(float64(retrieved))
	if retrieved == 0 {
		m.noEvidenceTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, duration time.Duration) {
	m.queryDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordGroundingAudit(service string, unsupported int) {
	outcome := "clean"
	if unsupported > 0 {
		outcome = "unsupported"
		m.unsupportedClaims.WithLabelValues(service).Add(float64(unsupported))
	}
	m.groundedAnswersTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
