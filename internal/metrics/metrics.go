// Package metrics provides Prometheus instrumentation for the decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RuleEvaluations counts rule engine outcomes.
	RuleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaiminho_rule_evaluations_total",
			Help: "Urgency rule engine evaluations by rule and decision",
		},
		[]string{"rule", "decision"},
	)

	// GateRejections counts tenant gate rejections by failed check.
	GateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaiminho_gate_rejections_total",
			Help: "Tenant isolation gate rejections by reason key",
		},
		[]string{"reason"},
	)

	// EscalationOutcomes counts escalation results.
	EscalationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaiminho_escalation_outcomes_total",
			Help: "Escalation controller outcomes",
		},
		[]string{"outcome"},
	)

	// ClassifierDuration tracks external classifier latency.
	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jaiminho_classifier_duration_seconds",
			Help:    "External classifier call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"provider", "call", "status"},
	)

	// Decisions counts final routing decisions per tenant.
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaiminho_decisions_total",
			Help: "Final routing decisions",
		},
		[]string{"tenant_id", "routing", "llm_used"},
	)

	// FeedbackReceived counts user feedback by verdict and whether it was new.
	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaiminho_feedback_received_total",
			Help: "User feedback received by verdict",
		},
		[]string{"feedback", "recorded"},
	)

	// RequestDuration tracks webhook request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jaiminho_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, seconds float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// RecordClassifierCall records one classifier invocation.
func RecordClassifierCall(provider, call, status string, seconds float64) {
	ClassifierDuration.WithLabelValues(provider, call, status).Observe(seconds)
}
