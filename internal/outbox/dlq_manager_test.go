package outbox

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute)

	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(40))
}

func TestReplayLimiter(t *testing.T) {
	require.Equal(t, rate.Inf, newReplayLimiter(0).Limit())
	require.Equal(t, rate.Inf, newReplayLimiter(-3).Limit())

	limited := newReplayLimiter(0.5)
	require.Equal(t, rate.Limit(0.5), limited.Limit())
	require.Equal(t, 1, limited.Burst())
	require.Equal(t, 20, newReplayLimiter(20).Burst())
}

func TestRecordDLQOutcomeLabelsByEventType(t *testing.T) {
	entry := dlqEntry{Topic: "challenge_enrollment_events", EventType: "enrollment.completed", RetryCount: 3}

	requeued := dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, dlqOutcomeRequeued)
	retried := dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, dlqOutcomeRetry)
	beforeRequeued := testutil.ToFloat64(requeued)
	beforeRetried := testutil.ToFloat64(retried)

	attempts := dlqAttemptsHistogram.WithLabelValues(entry.EventType, dlqOutcomeRequeued)
	var before dto.Metric
	require.NoError(t, attempts.(prometheus.Histogram).Write(&before))

	recordDLQOutcome(entry, dlqOutcomeRetry)
	recordDLQOutcome(entry, dlqOutcomeRequeued)

	require.Equal(t, beforeRequeued+1, testutil.ToFloat64(requeued))
	require.Equal(t, beforeRetried+1, testutil.ToFloat64(retried))

	var after dto.Metric
	require.NoError(t, attempts.(prometheus.Histogram).Write(&after))
	require.Equal(t, before.GetHistogram().GetSampleCount()+1, after.GetHistogram().GetSampleCount(), "only terminal outcomes record attempts")
	require.InDelta(t, before.GetHistogram().GetSampleSum()+3, after.GetHistogram().GetSampleSum(), 0.0001)
}
