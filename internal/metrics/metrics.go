package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for reachd.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	EventsTotal          *prometheus.CounterVec
	ProbesTotal          *prometheus.CounterVec
	ProbeDuration        prometheus.Histogram
	BackoffDelay         prometheus.Histogram
	InterfaceOnline      prometheus.Gauge
	EndpointReachable    prometheus.Gauge
	SchedulerStartsTotal prometheus.Counter
	JournalDroppedTotal  prometheus.Counter
}

// New creates and registers a new Metrics instance using a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reachd_http_requests_total",
			Help: "Total number of API requests.",
		}, []string{"method", "path", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reachd_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reachd_events_total",
			Help: "Total number of connectivity events by kind.",
		}, []string{"kind"}),

		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reachd_probes_total",
			Help: "Total number of finished probes by result.",
		}, []string{"result"}),

		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reachd_probe_duration_seconds",
			Help:    "Time from probe start to its reported outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}),

		BackoffDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reachd_backoff_delay_seconds",
			Help:    "Backoff delays started after failed probes.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),

		InterfaceOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reachd_interface_online",
			Help: "Whether a usable network interface is up (1) or not (0).",
		}),

		EndpointReachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reachd_endpoint_reachable",
			Help: "Whether the last probe outcome was a success (1) or not (0).",
		}),

		SchedulerStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachd_scheduler_starts_total",
			Help: "Total number of retry scheduler instances started.",
		}),

		JournalDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reachd_journal_dropped_total",
			Help: "Total number of dropped journal entries due to full buffer.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.EventsTotal,
		m.ProbesTotal,
		m.ProbeDuration,
		m.BackoffDelay,
		m.InterfaceOnline,
		m.EndpointReachable,
		m.SchedulerStartsTotal,
		m.JournalDroppedTotal,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
// using the metrics instance's dedicated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
