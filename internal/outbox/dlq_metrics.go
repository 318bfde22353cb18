package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ entry outcomes.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRetry       = "retry_scheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-lettered enrollment events handled, by event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqAttemptsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "challenge_service",
		Subsystem: "dlq",
		Name:      "attempts",
		Help:      "Retry count an entry had reached when it was requeued or quarantined.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "challenge_service",
		Subsystem: "dlq",
		Name:      "queued_entries",
		Help:      "Unquarantined DLQ entries per enrollment event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(dlqEntriesCounter, dlqAttemptsHistogram, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
	if outcome != dlqOutcomeRetry {
		dlqAttemptsHistogram.WithLabelValues(entry.EventType, outcome).Observe(float64(entry.RetryCount))
	}
}

// updateBacklogGauge resets the gauge so event types that drained report nothing.
func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	rows, err := pool.Query(ctx, `SELECT event_type, COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL GROUP BY event_type`)
	if err != nil {
		return
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return
		}
		counts[eventType] = count
	}
	if rows.Err() != nil {
		return
	}

	dlqBacklogGauge.Reset()
	for eventType, count := range counts {
		dlqBacklogGauge.WithLabelValues(eventType).Set(float64(count))
	}
}
