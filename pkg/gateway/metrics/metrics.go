// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Turn pipeline metrics
	TurnsTotal              *prometheus.CounterVec
	CompletionDegradedTotal prometheus.Counter
	SpeechSynthesisTotal    *prometheus.CounterVec

	// Live session metrics
	LiveSessionsActive prometheus.Gauge
	LiveSessionsTotal  *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a fresh
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "serenova"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns",
		},
		[]string{"kind", "status"},
	)

	completionDegradedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_degraded_total",
			Help:      "Total number of turns answered with a fallback reply",
		},
	)

	speechSynthesisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_synthesis_total",
			Help:      "Total number of speech synthesis attempts",
		},
		[]string{"provider", "outcome"},
	)

	liveSessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of active live call sessions",
		},
	)

	liveSessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live call sessions",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		turnsTotal,
		completionDegradedTotal,
		speechSynthesisTotal,
		liveSessionsActive,
		liveSessionsTotal,
	)

	return &Metrics{
		registry:                registry,
		RequestsTotal:           requestsTotal,
		RequestDuration:         requestDuration,
		TurnsTotal:              turnsTotal,
		CompletionDegradedTotal: completionDegradedTotal,
		SpeechSynthesisTotal:    speechSynthesisTotal,
		LiveSessionsActive:      liveSessionsActive,
		LiveSessionsTotal:       liveSessionsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTurn records a completed or failed conversation turn.
func (m *Metrics) RecordTurn(kind, status string) {
	m.TurnsTotal.WithLabelValues(kind, status).Inc()
}

// RecordDegraded records a turn answered with fallback text.
func (m *Metrics) RecordDegraded() {
	m.CompletionDegradedTotal.Inc()
}

// RecordSynthesis records one speech synthesis attempt.
func (m *Metrics) RecordSynthesis(provider, outcome string) {
	m.SpeechSynthesisTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordLiveSessionStart records a new live call session starting.
func (m *Metrics) RecordLiveSessionStart() {
	m.LiveSessionsActive.Inc()
}

// RecordLiveSessionEnd records a live call session ending.
func (m *Metrics) RecordLiveSessionEnd(status string) {
	m.LiveSessionsActive.Dec()
	m.LiveSessionsTotal.WithLabelValues(status).Inc()
}
