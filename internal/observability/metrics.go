// Package observability holds the prometheus instruments for enrollment operations.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "enrollment",
		Name:      "operations_total",
		Help:      "Enrollment operations grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	recomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "challenge_service",
		Subsystem: "enrollment",
		Name:      "recompute_duration_seconds",
		Help:      "Time spent deriving percent, streak and completion for one enrollment.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	completedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "enrollment",
		Name:      "completed_total",
		Help:      "Enrollments transitioned to completed, labeled by trigger.",
	}, []string{"trigger"})

	lastCheckInGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "challenge_service",
		Subsystem: "enrollment",
		Name:      "last_check_in_timestamp_seconds",
		Help:      "Unix timestamp of the most recent task completion recorded.",
	})
)

func init() {
	prometheus.MustRegister(operationsCounter, recomputeDuration, completedCounter, lastCheckInGauge)
}

// RecordOperation counts one operation; outcome is "ok" or an error kind.
func RecordOperation(operation, outcome string) {
	operationsCounter.WithLabelValues(operation, outcome).Inc()
}

// ObserveRecompute records how long a recompute took.
func ObserveRecompute(started time.Time) {
	recomputeDuration.Observe(time.Since(started).Seconds())
}

// RecordCompleted counts a completion transition. trigger is "tasks" or "manual".
func RecordCompleted(trigger string) {
	completedCounter.WithLabelValues(trigger).Inc()
}

// RecordCheckIn updates the check-in watermark gauge.
func RecordCheckIn(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastCheckInGauge.Set(float64(ts.Unix()))
}
