package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func frame(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"enrollment_id":"abc"}`)
	msg := kafka.Message{
		Topic:     "challenge_enrollment_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Key:       []byte("abc"),
		Value:     frame(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("enrollment.created")},
			{Key: "aggregate_id", Value: []byte("abc")},
			{Key: "schema_subject", Value: []byte("challenge_enrollment_events-created-value")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}
	processed := messagesCounter.WithLabelValues("challenge_enrollment_events", "enrollment.created", outcomeProcessed)
	before := testutil.ToFloat64(processed)

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "enrollment.created", handler.last.EventType)
	require.Equal(t, "abc", handler.last.AggregateID)
	require.Equal(t, "challenge_enrollment_events-created-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processed), 0.0001)
}

func TestProcessorFallsBackToKeyForAggregate(t *testing.T) {
	msg := kafka.Message{
		Key:     []byte("enr-7"),
		Value:   frame(1, []byte(`{}`)),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.archived")}},
	}
	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "enr-7", decoded.AggregateID)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "challenge_enrollment_events",
		Offset: 20,
		Time:   time.Now().UTC(),
		Key:    []byte("def"),
		Value:  frame(99, []byte(`{"enrollment_id":"def"}`)),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("enrollment.progress_changed")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := []kafka.Message{
		{Topic: "challenge_enrollment_events", Value: []byte{0, 1}},
		{Topic: "challenge_enrollment_events", Value: frame(3, []byte(`{}`))},
		{Topic: "challenge_enrollment_events", Value: frame(3, []byte(`not json`)), Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.created")}}},
		{Topic: "challenge_enrollment_events", Value: append([]byte{1}, frame(3, []byte(`{}`))[1:]...), Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.created")}}},
		{Topic: "challenge_enrollment_events", Value: frame(3, []byte(`{}`)), Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.created")}}},
	}

	unknown := messagesCounter.WithLabelValues("challenge_enrollment_events", unknownEventType, outcomeDecodeError)
	created := messagesCounter.WithLabelValues("challenge_enrollment_events", "enrollment.created", outcomeDecodeError)
	beforeUnknown := testutil.ToFloat64(unknown)
	beforeCreated := testutil.ToFloat64(created)
	reader := &stubReader{messages: cases, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, len(cases), reader.commitCalls)
	require.InDelta(t, beforeUnknown+2, testutil.ToFloat64(unknown), 0.0001)
	require.InDelta(t, beforeCreated+3, testutil.ToFloat64(created), 0.0001)
}

func TestDecodeRejectsRecordsWithoutEnrollmentID(t *testing.T) {
	_, err := decodeMessage(kafka.Message{
		Value:   frame(1, []byte(`{}`)),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.created")}},
	})
	require.ErrorContains(t, err, "missing enrollment id")
}

func TestProcessorRetriesHandlerBeforeCommitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sent := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	msg := kafka.Message{
		Topic: "challenge_enrollment_events",
		Time:  sent,
		Key:   []byte("enr-1"),
		Value: frame(7, []byte(`{"enrollment_id":"enr-1"}`)),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("enrollment.completed")},
		},
	}
	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("database unavailable"), failFirst: 2}

	var before dto.Metric
	lag := deliveryLag.WithLabelValues("enrollment.completed").(prometheus.Histogram)
	require.NoError(t, lag.Write(&before))

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithHandlerRetries(2, time.Millisecond),
	)
	processor.now = func() time.Time { return sent.Add(3 * time.Second) }
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)

	var after dto.Metric
	require.NoError(t, lag.Write(&after))
	require.Equal(t, before.GetHistogram().GetSampleCount()+1, after.GetHistogram().GetSampleCount())
	require.InDelta(t, before.GetHistogram().GetSampleSum()+3, after.GetHistogram().GetSampleSum(), 0.0001)
}

func TestProcessorGivesUpAfterRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:   "challenge_enrollment_events",
		Key:     []byte("enr-2"),
		Value:   frame(7, []byte(`{}`)),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("enrollment.archived")}},
	}
	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("constraint violation")}
	failed := messagesCounter.WithLabelValues("challenge_enrollment_events", "enrollment.archived", outcomeHandlerError)
	before := testutil.ToFloat64(failed)

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithHandlerRetries(1, time.Millisecond))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Equal(t, 2, handler.calls)
	require.Zero(t, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(failed), 0.0001)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler returns err on every call, or only on the first failFirst calls when set.
type stubHandler struct {
	calls     int
	err       error
	failFirst int
	last      Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.failFirst > 0 && h.calls > h.failFirst {
		return nil
	}
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
