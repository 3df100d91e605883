package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for the scheduler.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	solveDuration *prometheus.HistogramVec
	tasksSubmit   *prometheus.CounterVec
	tasksFinished *prometheus.CounterVec
}

// NewMetricsService builds the registry and registers all collectors.
// queueDepth, if non-nil, is exported as a gauge sampled at scrape time.
func NewMetricsService(queueDepth func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_solve_duration_seconds",
			Help:    "Timetable solve duration by strategy and outcome.",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"strategy", "outcome"}),
		tasksSubmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_tasks_submitted_total",
			Help: "Scheduling tasks accepted for processing.",
		}, []string{"strategy"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_tasks_finished_total",
			Help: "Scheduling tasks reaching a terminal state.",
		}, []string{"strategy", "outcome"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.solveDuration,
		m.tasksSubmit,
		m.tasksFinished,
	)

	if queueDepth != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Jobs waiting in the scheduling queue.",
		}, func() float64 { return float64(queueDepth()) }))
	}

	return m
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *MetricsService) ObserveSolve(strategy, outcome string, elapsed time.Duration) {
	m.solveDuration.WithLabelValues(strategy, outcome).Observe(elapsed.Seconds())
}

func (m *MetricsService) TaskSubmitted(strategy string) {
	m.tasksSubmit.WithLabelValues(strategy).Inc()
}

func (m *MetricsService) TaskFinished(strategy, outcome string) {
	m.tasksFinished.WithLabelValues(strategy, outcome).Inc()
}

// Handler serves the registry for scraping.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
