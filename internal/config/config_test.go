package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POSTGRES_URL", "KAFKA_BROKERS", "OUTBOX_POLL_INTERVAL", "DLQ_REPLAY_RATE", "CONSUMER_TOPICS", "CONSUMER_HANDLER_RETRIES", "CONSUMER_RETRY_BACKOFF"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Contains(t, cfg.PostgresURL, "/challenges")
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 10.0, cfg.DLQReplayRate)
	require.Equal(t, []string{"challenge_enrollment_events"}, cfg.ConsumerTopics)
	require.Equal(t, 3, cfg.ConsumerRetries)
	require.Equal(t, 500*time.Millisecond, cfg.ConsumerBackoff)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker-1:9092 , ,broker-2:9092")
	t.Setenv("POSTGRES_MAX_CONNS", "32")
	t.Setenv("DLQ_BASE_DELAY", "15s")
	t.Setenv("DLQ_REPLAY_RATE", "2.5")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg := Load()
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, int32(32), cfg.PostgresMaxConns)
	require.Equal(t, 15*time.Second, cfg.DLQBaseDelay)
	require.Equal(t, 2.5, cfg.DLQReplayRate)
	require.Equal(t, 25, cfg.OutboxBatchSize, "unparseable values fall back to defaults")
}
