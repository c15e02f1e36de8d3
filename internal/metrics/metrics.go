package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts final decisions by outcome and by the layer that
	// produced them ("layer1" or "layer3").
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Safety engine decisions by outcome and deciding layer.",
	}, []string{"decision", "layer"})

	// ClassifierLatency observes wall-clock classifier call duration,
	// including failed and timed-out calls.
	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_classifier_latency_seconds",
		Help:    "Latency of external classifier calls.",
		Buckets: prometheus.DefBuckets,
	})

	// ClassifierFailures counts calls recovered as the nil sentinel.
	ClassifierFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_classifier_failures_total",
		Help: "Classifier calls that timed out, errored, or returned unusable JSON.",
	})

	// RetrievalDegraded counts evaluations that fell back to coarse or empty
	// layer-2 context.
	RetrievalDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_retrieval_degraded_total",
		Help: "Evaluations that degraded to coarse or empty retrieval context.",
	})

	// AuditDropped counts audit events dropped because the queue was full.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_audit_dropped_total",
		Help: "Audit events dropped under backpressure (at-most-once delivery).",
	})
)
