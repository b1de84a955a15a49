// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Total number of document lifecycle transitions by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of lifecycle notifications delivered by kind",
		},
		[]string{"kind"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification delivery failures by kind",
		},
		[]string{"kind"},
	)

	NotificationsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_cancelled_total",
			Help: "Total number of notification jobs cancelled because the document status moved on",
		},
		[]string{"kind"},
	)

	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scheduler_tick_duration_seconds",
			Help: "Duration of scheduler sweep passes in seconds",
		},
	)
)
