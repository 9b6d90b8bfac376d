package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_completed_total",
			Help: "Total number of queue tasks completed",
		},
		[]string{"queue"},
	)

	QueueTasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_failed_total",
			Help: "Total number of queue tasks failed",
		},
		[]string{"queue", "error_code"},
	)

	QueueTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "queue_task_duration_seconds",
			Help: "Duration of queue task processing in seconds",
		},
		[]string{"queue"},
	)

	QueueTasksReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_reclaimed_total",
			Help: "Total tasks returned to the ready set after their consumer died",
		},
		[]string{"queue"},
	)

	QueueTasksActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_tasks_active",
			Help: "Number of tasks currently being processed",
		},
		[]string{"queue"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total notifications delivered, by channel",
		},
		[]string{"channel"},
	)

	ExportsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_completed_total",
			Help: "Total export jobs completed, by report type",
		},
		[]string{"type"},
	)
)
