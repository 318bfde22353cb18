package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/challenges/internal/domain"
	"example.com/challenges/internal/events"
)

// ErrAggregateMismatch is returned when a payload names a different enrollment than its record key.
var ErrAggregateMismatch = errors.New("payload enrollment does not match record key")

// PersistenceHandler writes consumed enrollment events into Postgres for auditing.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle validates the payload and stores it in enrollment_event_log. Redelivered
// records are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	if err := validatePayload(msg); err != nil {
		return err
	}

	_, err := h.pool.Exec(ctx,
		`INSERT INTO enrollment_event_log (event_type, aggregate_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.AggregateID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// validatePayload checks known event types against their payload struct. Unknown
// types pass through so newer producers do not stall the log.
func validatePayload(msg Message) error {
	var enrollmentID string
	switch msg.EventType {
	case domain.EventEnrollmentCreated:
		var e events.EnrollmentCreated
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		enrollmentID = e.EnrollmentID
	case domain.EventProgressChanged:
		var e events.ProgressChanged
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		enrollmentID = e.EnrollmentID
	case domain.EventEnrollmentCompleted:
		var e events.EnrollmentCompleted
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		enrollmentID = e.EnrollmentID
	case domain.EventEnrollmentArchived:
		var e events.EnrollmentArchived
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		enrollmentID = e.EnrollmentID
	default:
		return nil
	}

	if msg.AggregateID != "" && enrollmentID != msg.AggregateID {
		return fmt.Errorf("%w: %s != %s", ErrAggregateMismatch, enrollmentID, msg.AggregateID)
	}
	return nil
}
