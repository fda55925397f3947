// Package metrics holds the Prometheus instrumentation for the call bridge.
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

	// Call lifecycle
	CallsStartedTotal *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	SessionsTotal     *prometheus.CounterVec
	SessionDuration   prometheus.Histogram

	// Bridge traffic
	FramesBridgedTotal *prometheus.CounterVec

	// Terminal pipeline
	GradingTotal         *prometheus.CounterVec
	PublishFailuresTotal prometheus.Counter
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "callbridge"
	}

	registry := prometheus.NewRegistry()

	callsStartedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total outbound call creation attempts",
		},
		[]string{"status"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live media-stream sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total media-stream sessions by terminal status",
		},
		[]string{"status"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Media-stream session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	framesBridgedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_bridged_total",
			Help:      "Audio frames translated between the telephony and voice-AI legs",
		},
		[]string{"direction"},
	)

	gradingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grading_total",
			Help:      "Grading attempts by outcome",
		},
		[]string{"outcome"},
	)

	publishFailuresTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Analysis results that could not be delivered to the storage endpoint",
		},
	)

	registry.MustRegister(
		callsStartedTotal,
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		framesBridgedTotal,
		gradingTotal,
		publishFailuresTotal,
	)

	return &Metrics{
		registry:             registry,
		CallsStartedTotal:    callsStartedTotal,
		SessionsActive:       sessionsActive,
		SessionsTotal:        sessionsTotal,
		SessionDuration:      sessionDuration,
		FramesBridgedTotal:   framesBridgedTotal,
		GradingTotal:         gradingTotal,
		PublishFailuresTotal: publishFailuresTotal,
	}
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCallStarted records one call creation attempt.
func (m *Metrics) RecordCallStarted(status string) {
	m.CallsStartedTotal.WithLabelValues(status).Inc()
}

// RecordSessionStart records a media-stream session opening.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session reaching its terminal state.
func (m *Metrics) RecordSessionEnd(status string, duration time.Duration) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordFrame records one bridged audio frame. Direction is "inbound"
// (telephony to voice AI) or "outbound" (voice AI to telephony).
func (m *Metrics) RecordFrame(direction string) {
	m.FramesBridgedTotal.WithLabelValues(direction).Inc()
}

// RecordGrading records one grading attempt outcome ("graded" or "fallback").
func (m *Metrics) RecordGrading(outcome string) {
	m.GradingTotal.WithLabelValues(outcome).Inc()
}

// RecordPublishFailure records one undelivered analysis result.
func (m *Metrics) RecordPublishFailure() {
	m.PublishFailuresTotal.Inc()
}
