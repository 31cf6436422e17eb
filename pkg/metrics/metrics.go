package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// NotificationsCreated counts notifications persisted by the derivation engine.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_notifications_created_total",
			Help: "Notifications derived from task mutations and stored",
		},
		[]string{"type"},
	)

	// NotificationsSuppressed counts drafts dropped because sender equals recipient.
	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_notifications_suppressed_total",
			Help: "Self-notifications suppressed before persistence",
		},
		[]string{"type"},
	)

	// NotificationsDropped counts derived notifications that failed to persist.
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_notifications_dropped_total",
			Help: "Derived notifications lost to persistence failures",
		},
		[]string{"type", "reason"},
	)

	// MaintenanceRemoved tracks records removed by background maintenance jobs.
	MaintenanceRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_maintenance_removed_total",
			Help: "Records removed by maintenance jobs",
		},
		[]string{"job"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
