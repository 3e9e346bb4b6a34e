// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AllocationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_allocation_requests_total",
			Help: "Total allocation requests by operation and outcome",
		},
		[]string{"operation", "outcome", "error_code"},
	)

	AllocationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_allocations_created_total",
			Help: "Total allocations created, split by content source",
		},
		[]string{"source"}, // generated | fallback
	)

	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_publish_attempts_total",
			Help: "Total publish attempts by outcome",
		},
		[]string{"outcome"}, // published | failed
	)

	CycleRollovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_cycle_rollovers_total",
			Help: "Total billing cycle rollovers performed",
		},
	)

	Suspensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_suspensions_total",
			Help: "Total subscriptions suspended after grace period expiry",
		},
	)

	Reactivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_reactivations_total",
			Help: "Total suspended subscriptions reactivated by payment success",
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_webhook_events_total",
			Help: "Total payment webhook events by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: processed | duplicate | failed
	)

	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_runs_total",
			Help: "Total periodic task runs by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	TaskRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scheduler_task_run_duration_seconds",
			Help: "Duration of periodic task runs in seconds",
		},
		[]string{"task"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_generation_attempts_total",
			Help: "Content generation attempts by outcome",
		},
		[]string{"outcome"}, // success | timeout | throttled | failed
	)
)
