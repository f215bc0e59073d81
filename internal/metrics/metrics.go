// Package metrics exposes Prometheus metrics for the portal.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the portal
type Metrics struct {
	// Import pipeline
	ImportRunsTotal      *prometheus.CounterVec
	ImportRowsTotal      *prometheus.CounterVec
	ImportAnomaliesTotal prometheus.Counter

	// Campaign sending
	EmailsQueuedTotal prometheus.Counter
	EmailsSentTotal   prometheus.Counter
	EmailsFailedTotal prometheus.Counter
	QueuePending      prometheus.Gauge

	// Tracking
	EventsTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ImportRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishportal_import_runs_total",
				Help: "Total number of CSV import invocations",
			},
			[]string{"result"}, // ok, failed
		),
		ImportRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishportal_import_rows_total",
				Help: "Total number of processed CSV rows",
			},
			[]string{"outcome"}, // created, linked, noop, error
		),
		ImportAnomaliesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phishportal_import_anomalies_total",
				Help: "Total number of imports whose error count crossed the anomaly threshold",
			},
		),
		EmailsQueuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phishportal_emails_queued_total",
				Help: "Total number of simulation emails queued for delivery",
			},
		),
		EmailsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phishportal_emails_sent_total",
				Help: "Total number of simulation emails delivered to the relay",
			},
		),
		EmailsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phishportal_emails_failed_total",
				Help: "Total number of simulation emails that exhausted delivery attempts",
			},
		),
		QueuePending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phishportal_queue_pending",
				Help: "Number of messages waiting in the outbound queue",
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishportal_tracking_events_total",
				Help: "Total number of recorded tracking events",
			},
			[]string{"type"}, // OPEN, CLICK, REPORT
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishportal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phishportal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.ImportRunsTotal,
		m.ImportRowsTotal,
		m.ImportAnomaliesTotal,
		m.EmailsQueuedTotal,
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.QueuePending,
		m.EventsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
	)
	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveImport records the outcome counts of one import run
func (m *Metrics) ObserveImport(created, linked, noop, errors int) {
	m.ImportRunsTotal.WithLabelValues("ok").Inc()
	m.ImportRowsTotal.WithLabelValues("created").Add(float64(created))
	m.ImportRowsTotal.WithLabelValues("linked").Add(float64(linked))
	m.ImportRowsTotal.WithLabelValues("noop").Add(float64(noop))
	m.ImportRowsTotal.WithLabelValues("error").Add(float64(errors))
}
