// Package metrics defines the Prometheus collectors for the verification
// engine. All metrics register against a private registry so tests never
// collide with the global default.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// TelemetrySamples counts accepted samples by kind.
	TelemetrySamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humanproof_telemetry_samples_total",
			Help: "Telemetry samples recorded, by kind.",
		},
		[]string{"kind"},
	)

	// InvalidTelemetry counts malformed samples that were dropped.
	InvalidTelemetry = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "humanproof_invalid_telemetry_total",
			Help: "Malformed telemetry samples dropped at ingress.",
		},
	)

	// Verifications counts terminal verdicts by outcome and method.
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humanproof_verifications_total",
			Help: "Terminal session verdicts, by outcome and method.",
		},
		[]string{"outcome", "method"},
	)

	// ChallengesIssued counts issued challenges by type.
	ChallengesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humanproof_challenges_issued_total",
			Help: "Challenges issued, by type.",
		},
		[]string{"type"},
	)

	// ChallengesResolved counts challenge validations by type and result.
	ChallengesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humanproof_challenges_resolved_total",
			Help: "Challenge validations, by type and result.",
		},
		[]string{"type", "result"},
	)

	// ClassifierFallbacks counts scoring runs that fell back to the
	// rule-based algorithm.
	ClassifierFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "humanproof_classifier_fallbacks_total",
			Help: "Scoring runs that used the fallback algorithm because the classifier was unavailable.",
		},
	)

	// ClassifierLatency observes external classifier call durations.
	ClassifierLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "humanproof_classifier_latency_seconds",
			Help:    "External classifier call latency.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActiveSessions tracks sessions that have not reached a terminal state.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "humanproof_active_sessions",
			Help: "Sessions currently in a non-terminal state.",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TelemetrySamples,
		InvalidTelemetry,
		Verifications,
		ChallengesIssued,
		ChallengesResolved,
		ClassifierFallbacks,
		ClassifierLatency,
		ActiveSessions,
	)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
