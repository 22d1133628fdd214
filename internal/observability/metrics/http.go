package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	identifyColumnsTotal *prometheus.CounterVec
	identifyConfidence   *prometheus.HistogramVec
	identifyCandidates   *prometheus.HistogramVec
	identifyBasisTotal   *prometheus.CounterVec
	identifyDuration     *prometheus.HistogramVec

	oracleDegradedTotal *prometheus.CounterVec
	trainEnqueuedTotal  *prometheus.CounterVec

	storeSheets  *prometheus.GaugeVec
	storeVersion *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fpe",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	identifyColumnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "identify",
			Name:      "columns_total",
			Help:      "Total identified columns by decision.",
		},
		[]string{"service", "decision"},
	)
	identifyConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "identify",
			Name:      "confidence",
			Help:      "Distribution of per-column identification confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"service"},
	)
	identifyCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "identify",
			Name:      "candidates",
			Help:      "Distribution of contributing stored sources per column.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	identifyBasisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "identify",
			Name:      "basis_total",
			Help:      "Total fill decisions by winning match basis.",
		},
		[]string{"service", "basis"},
	)
	identifyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "identify",
			Name:      "duration_seconds",
			Help:      "Per-sheet identification duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	oracleDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "oracle",
			Name:      "degraded_total",
			Help:      "Total identification sheets served with the oracle degraded.",
		},
		[]string{"service"},
	)
	trainEnqueuedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "train",
			Name:      "enqueued_total",
			Help:      "Total training jobs accepted by the API.",
		},
		[]string{"service"},
	)
	storeSheets := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fpe",
			Subsystem: "store",
			Name:      "sheets",
			Help:      "Sheets in the pattern store last observed by the API.",
		},
		[]string{"service"},
	)
	storeVersion := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fpe",
			Subsystem: "store",
			Name:      "version",
			Help:      "Pattern store version last observed by the API.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		identifyColumnsTotal,
		identifyConfidence,
		identifyCandidates,
		identifyBasisTotal,
		identifyDuration,
		oracleDegradedTotal,
		trainEnqueuedTotal,
		storeSheets,
		storeVersion,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		identifyColumnsTotal: identifyColumnsTotal,
		identifyConfidence:   identifyConfidence,
		identifyCandidates:   identifyCandidates,
		identifyBasisTotal:   identifyBasisTotal,
		identifyDuration:     identifyDuration,
		oracleDegradedTotal:  oracleDegradedTotal,
		trainEnqueuedTotal:   trainEnqueuedTotal,
		storeSheets:          storeSheets,
		storeVersion:         storeVersion,
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
	case strings.HasPrefix(path, "/v1/store/sheets/"):
		return "/v1/store/sheets/{sheet_key}"
	default:
		return path
	}
}

// RecordIdentification folds one sheet's identification outcome into the
// identify subsystem.
func (m *HTTPServerMetrics) RecordIdentification(service string, identification domain.SheetIdentification, duration time.Duration) {
	m.identifyDuration.WithLabelValues(service).Observe(duration.Seconds())
	if identification.OracleDegraded {
		m.oracleDegradedTotal.WithLabelValues(service).Inc()
	}

	for _, result := range identification.Results {
		m.identifyColumnsTotal.WithLabelValues(service, string(result.Decision)).Inc()
		m.identifyConfidence.WithLabelValues(service).Observe(result.Confidence)
		m.identifyCandidates.WithLabelValues(service).Observe(float64(result.ContributingSources))
		if result.Decision == domain.DecisionFill && result.Method != "" {
			m.identifyBasisTotal.WithLabelValues(service, result.Method).Inc()
		}
	}
}

func (m *HTTPServerMetrics) RecordTrainingEnqueued(service string) {
	m.trainEnqueuedTotal.WithLabelValues(service).Inc()
}

// RecordStoreSnapshot refreshes the store gauges from the most recently
// loaded store view.
func (m *HTTPServerMetrics) RecordStoreSnapshot(service string, stats domain.StoreStats) {
	m.storeSheets.WithLabelValues(service).Set(float64(stats.Sheets))
	m.storeVersion.WithLabelValues(service).Set(float64(stats.Version))
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
