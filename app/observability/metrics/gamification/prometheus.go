package gamificationmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gamification"

type prometheusMetrics struct {
	operationAttempts  *prometheus.CounterVec
	operationSuccesses *prometheus.CounterVec
	operationFailures  *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	scoreEvents        prometheus.Counter
	scorePoints        prometheus.Counter
	duplicateAttempts  prometheus.Counter
	badgesGranted      *prometheus.CounterVec
	lookupFailures     *prometheus.CounterVec
}

// NewPrometheus registers the gamification collectors on reg.
func NewPrometheus(reg prometheus.Registerer) GamificationMetrics {
	factory := promauto.With(reg)
	labels := []string{"operation", "service"}

	return &prometheusMetrics{
		operationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, labels),
		operationSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_successes_total",
			Help:      "Service operations that completed without an infrastructure error.",
		}, labels),
		operationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Service operations that returned an error or panicked.",
		}, labels),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		scoreEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_events_total",
			Help:      "Score events appended to the ledger.",
		}),
		scorePoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_points_total",
			Help:      "Points awarded across all users.",
		}),
		duplicateAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_attempts_total",
			Help:      "Correct outcomes whose attempt was already scored.",
		}),
		badgesGranted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_granted_total",
			Help:      "Badge grants appended to the ledger.",
		}, []string{"badge_kind"}),
		lookupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_lookup_failures_total",
			Help:      "Attempt lookups that failed.",
		}, []string{"reason"}),
	}
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operationAttempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operationSuccesses.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operationFailures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordScoreEvent(_ context.Context, score int) {
	m.scoreEvents.Inc()
	m.scorePoints.Add(float64(score))
}

func (m *prometheusMetrics) RecordDuplicateAttempt(_ context.Context) {
	m.duplicateAttempts.Inc()
}

func (m *prometheusMetrics) RecordBadgeGranted(_ context.Context, badgeKind string) {
	m.badgesGranted.WithLabelValues(badgeKind).Inc()
}

func (m *prometheusMetrics) RecordLookupFailure(_ context.Context, reason string) {
	m.lookupFailures.WithLabelValues(reason).Inc()
}
