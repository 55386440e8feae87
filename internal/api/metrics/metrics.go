// Package metrics defines and registers all custom Prometheus metrics for the
// companion API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "companion"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts authentication requests.
// Labels:
//   - op: "login", "register" or "logout"
//   - result: "success", "rejected" (bad credentials or input) or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication requests, by operation and result.",
	},
	[]string{"op", "result"},
)

// RateLimitedTotal counts requests refused by the per-client rate limiter.
var RateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
)

// ── Chat metrics ──────────────────────────────────────────────────────────────

// ChatMessagesTotal counts answered chat turns.
// Label:
//   - caller: "anonymous" or "authenticated"
var ChatMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_total",
		Help:      "Total number of chat turns answered, by caller type.",
	},
	[]string{"caller"},
)

// ChatQuotaExceededTotal counts anonymous turns refused because the device
// used up its allowance.
var ChatQuotaExceededTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_quota_exceeded_total",
		Help:      "Total number of anonymous chat turns rejected by the quota.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsProcessedTotal counts audit events persisted by the dispatcher.
// Label:
//   - kind: the event kind (e.g. "login", "register_failed")
var AuditEventsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_processed_total",
		Help:      "Total number of audit events successfully stored.",
	},
	[]string{"kind"},
)

// AuditEventsErrorsTotal counts audit events that were not stored.
// Label:
//   - reason: "store_failed" or "queue_full"
var AuditEventsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_errors_total",
		Help:      "Total number of audit events that could not be stored.",
	},
	[]string{"reason"},
)

// AuditQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditProcessingDuration measures how long storing a single audit event takes.
// Label:
//   - kind: the event kind, or "error" on failure
var AuditProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_processing_duration_seconds",
		Help:      "Duration of audit event processing from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// ── Onboarding metrics ────────────────────────────────────────────────────────

// OnboardingCompletedTotal counts accepted onboarding submissions.
// Label:
//   - role: "individual" or "organization"
var OnboardingCompletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "onboarding_completed_total",
		Help:      "Total number of accepted onboarding submissions, by role.",
	},
	[]string{"role"},
)
