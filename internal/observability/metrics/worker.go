package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	columnsTotal  *prometheus.CounterVec
	sheetsSkipped *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "training_jobs_total",
			Help:      "Total processed training jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "training_duration_seconds",
			Help:      "Training job duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "training_jobs_in_flight",
			Help:      "Number of in-flight training jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job enqueue and training start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	columnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "columns_learned_total",
			Help:      "Total columns merged into the pattern store.",
		},
		[]string{"service"},
	)
	sheetsSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fpe",
			Subsystem: "worker",
			Name:      "sheets_skipped_total",
			Help:      "Total sheet pairs skipped with a training warning.",
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, columnsTotal, sheetsSkipped)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		queueLag:      queueLag,
		columnsTotal:  columnsTotal,
		sheetsSkipped: sheetsSkipped,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) AddColumnsLearned(service string, columns int) {
	if columns <= 0 {
		return
	}
	m.columnsTotal.WithLabelValues(service).Add(float64(columns))
}

func (m *WorkerMetrics) AddSheetsSkipped(service string, skipped int) {
	if skipped <= 0 {
		return
	}
	m.sheetsSkipped.WithLabelValues(service).Add(float64(skipped))
}
