package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	return NewServerMetricsWith(prometheus.DefaultRegisterer, service)
}

func NewServerMetricsWith(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

func (m *ServerMetrics) Observe(handler, status string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

// ConsoleMetrics tracks the order feed and the side effects it drives.
type ConsoleMetrics struct {
	Snapshots   prometheus.Counter
	Detected    prometheus.Counter
	SideEffects *prometheus.CounterVec
	Operations  *prometheus.CounterVec
}

func NewConsoleMetrics(reg prometheus.Registerer) *ConsoleMetrics {
	m := &ConsoleMetrics{
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "console",
			Name:      "feed_snapshots_total",
			Help:      "Feed snapshots processed.",
		}),
		Detected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "console",
			Name:      "new_orders_detected_total",
			Help:      "Payable orders detected as new.",
		}),
		SideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "console",
			Name:      "side_effects_total",
			Help:      "External side effects by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "console",
			Name:      "lifecycle_operations_total",
			Help:      "Operator lifecycle operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.Snapshots, m.Detected, m.SideEffects, m.Operations)
	return m
}

func (m *ConsoleMetrics) SideEffect(kind, outcome string) {
	if m == nil {
		return
	}
	m.SideEffects.WithLabelValues(kind, outcome).Inc()
}

func (m *ConsoleMetrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *ConsoleMetrics) Snapshot(detected int) {
	if m == nil {
		return
	}
	m.Snapshots.Inc()
	m.Detected.Add(float64(detected))
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
