//go:build integration

package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/challenges/internal/domain"
)

const testTopic = "challenge_enrollment_events"

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	aggregateID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, aggregateID, domain.EventEnrollmentCreated, testTopic+"-created-value"))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, testTopic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	record := producer.writes[0].messages[0]
	require.Equal(t, aggregateID, string(record.Key))
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.Equal(t, domain.EventEnrollmentCreated, headerString(record, "event_type"))
	require.Equal(t, aggregateID, headerString(record, "aggregate_id"))
	require.Equal(t, testTopic+"-created-value", headerString(record, "schema_subject"))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published rows are not redelivered")
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	aggregateID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, aggregateID, domain.EventProgressChanged, testTopic+"-progress_changed-value"))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(testTopic))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(testTopic)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE aggregate_id = $1`, aggregateID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherCachesSchemaIDsAcrossBatch(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), domain.EventEnrollmentCreated, testTopic+"-created-value"))
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), domain.EventEnrollmentCreated, testTopic+"-created-value"))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "enrollment.unknown", testTopic+"-unknown-value")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls, "schema registry should not be invoked when metadata missing")

	var dlqCount int
	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&dlqCount, &reason))
	require.Equal(t, 1, dlqCount)
	require.Contains(t, reason, "no schema metadata for event_type=enrollment.unknown")
}

func TestDLQReplayRedeliversThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	aggregateID := uuid.NewString()
	seedOutbox(t, ctx, pool, aggregateID, domain.EventEnrollmentCompleted, testTopic+"-completed-value")
	registry := &stubRegistry{id: 100}

	failing := NewDispatcher(pool, &stubProducer{err: errors.New("upstream kafka unavailable")}, registry, 5*time.Millisecond, 10)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, 5, time.Second, WithReplayRate(50))
	beforeRequeued := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(testTopic, domain.EventEnrollmentCompleted, dlqOutcomeRequeued))

	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.InDelta(t, beforeRequeued+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(testTopic, domain.EventEnrollmentCompleted, dlqOutcomeRequeued)), 0.0001)
	require.Zero(t, testutil.CollectAndCount(dlqBacklogGauge), "drained event types report no backlog")

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 0, dlqCount, "expected DLQ cleared after requeue")

	producer := &stubProducer{}
	require.NoError(t, NewDispatcher(pool, producer, registry, 5*time.Millisecond, 10).processBatch(ctx))
	require.Len(t, producer.writes, 1)
	require.Equal(t, aggregateID, string(producer.writes[0].messages[0].Key))
}

func TestDLQManagerQuarantinesAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
         VALUES (1, $1, $2, '{}', 'seed', 'enrollment', 'agg-1', '', 'agg-1', NOW())`,
		domain.EventEnrollmentArchived, testTopic,
	)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 1, time.Minute)

	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var retries int
	var reason string
	var nextRetry time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count, reason, next_retry_at FROM outbox_dlq`).Scan(&retries, &reason, &nextRetry))
	require.Equal(t, 1, retries)
	require.Contains(t, reason, "missing schema_subject")
	require.True(t, nextRetry.After(time.Now().Add(30*time.Second)), "retry scheduled with backoff")

	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed, "entry is not due yet")

	_, err = pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW()`)
	require.NoError(t, err)

	beforeQuarantined := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(testTopic, domain.EventEnrollmentArchived, dlqOutcomeQuarantined))
	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.InDelta(t, beforeQuarantined+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(testTopic, domain.EventEnrollmentArchived, dlqOutcomeQuarantined)), 0.0001)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: append([]kafka.Message(nil), msgs...)})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	calls []string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, subject)
	return s.id, nil
}

func headerString(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, aggregateID, eventType, subject string) int64 {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"enrollment_id": aggregateID})
	require.NoError(t, err)

	var eventID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		"enrollment", aggregateID, eventType, testTopic, subject, aggregateID, payload,
	).Scan(&eventID))
	return eventID
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("challenges"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(resolvePath(t, "../../db/postgres/migrations"), "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "expected at least one migration .up.sql file")
	sort.Strings(files)

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)
		_, execErr := pool.Exec(ctx, string(contents))
		require.NoErrorf(t, execErr, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
