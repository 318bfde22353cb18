package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

const maxBackoff = time.Hour

// DLQManager replays dead-lettered events into the outbox and quarantines entries that
// keep failing.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewDLQManager constructs a DLQManager. Replays are unthrottled unless WithReplayRate is supplied.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, opts ...Option) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	o := applyOptions("[dlq] ", opts)
	return &DLQManager{
		pool:       pool,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		limiter:    newReplayLimiter(o.replayRate),
		logger:     o.logger,
	}
}

func newReplayLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

// RunOnce processes a batch of due DLQ entries and returns how many were handled.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at, dlq_id
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, scanDLQEntry)
	if err != nil {
		return 0, err
	}

	processed := 0
	var errs error
	for _, entry := range entries {
		if waitErr := m.limiter.Wait(ctx); waitErr != nil {
			errs = errors.Join(errs, waitErr)
			break
		}
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			errs = errors.Join(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, procErr))
			continue
		}
		processed++
	}

	updateBacklogGauge(ctx, m.pool)
	return processed, errs
}

// handleEntry applies retry or quarantine logic for a single DLQ entry.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		m.logger.Printf("quarantined (dlq_id=%d, event_type=%s, aggregate=%s, retries=%d)", entry.ID, entry.EventType, entry.AggregateID, entry.RetryCount)
		recordDLQOutcome(entry, dlqOutcomeQuarantined)
		return nil
	}

	if requeueErr := requeueOutbox(ctx, tx, entry); requeueErr != nil {
		// The failed insert aborted tx; schedule the retry in a fresh one.
		tx.Rollback(ctx)
		return m.scheduleRetry(ctx, entry, requeueErr)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	recordDLQOutcome(entry, dlqOutcomeRequeued)
	return nil
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                next_retry_at = NOW() + $1::interval,
                reason = $2
          WHERE dlq_id = $3`,
		delay, cause.Error(), entry.ID,
	); err != nil {
		return err
	}
	recordDLQOutcome(entry, dlqOutcomeRetry)
	return nil
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

// requeueOutbox reinserts the payload into the primary outbox table for replay.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := tx.Exec(ctx, stmt,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(row pgx.CollectableRow) (dlqEntry, error) {
	var entry dlqEntry
	err := row.Scan(&entry.ID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason,
		&entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.RetryCount)
	return entry, err
}
