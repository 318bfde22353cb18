package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestRecordProducedCountsByEventType(t *testing.T) {
	const topic = "challenge_enrollment_events"
	progress := producedCounter.WithLabelValues(topic, "enrollment.progress_changed", "delivered")
	unknown := producedCounter.WithLabelValues(topic, "unknown", "delivered")
	failed := producedCounter.WithLabelValues(topic, "enrollment.archived", "failed")
	beforeProgress := testutil.ToFloat64(progress)
	beforeUnknown := testutil.ToFloat64(unknown)
	beforeFailed := testutil.ToFloat64(failed)

	recordProduced(topic, []kafka.Message{
		{Headers: []kafka.Header{{Key: headerEventType, Value: []byte("enrollment.progress_changed")}}},
		{Headers: []kafka.Header{{Key: headerEventType, Value: []byte("enrollment.progress_changed")}}},
		{},
	}, nil)
	recordProduced(topic, []kafka.Message{
		{Headers: []kafka.Header{{Key: headerEventType, Value: []byte("enrollment.archived")}}},
	}, errors.New("leader not available"))

	require.Equal(t, beforeProgress+2, testutil.ToFloat64(progress))
	require.Equal(t, beforeUnknown+1, testutil.ToFloat64(unknown))
	require.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestProducerOptionsApplyToWriters(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, WithBatchTimeout(5*time.Millisecond), WithWriteTimeout(time.Second))
	defer p.Close()

	w := p.writerForTopic("challenge_enrollment_events")
	require.Same(t, w, p.writerForTopic("challenge_enrollment_events"))
	require.Equal(t, 5*time.Millisecond, w.BatchTimeout)
	require.Equal(t, time.Second, w.WriteTimeout)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
}
