// Package consumer reads enrollment events back from Kafka for downstream processing.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithHandlerRetries retries a failing handler up to attempts extra times, waiting
// backoff between tries, before the record is left uncommitted.
func WithHandlerRetries(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		p.retries = max(0, attempts)
		p.backoff = backoff
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger
	retries int
	backoff time.Duration
	now     func() time.Time
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes Kafka messages until the context is cancelled. Messages are committed
// only after the handler succeeds; undecodable messages are committed and dropped.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			eventType, _ := headerValue(msg, "event_type")
			recordDecodeError(msg.Topic, string(eventType))
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if handleErr := p.handle(ctx, event); handleErr != nil {
			if errors.Is(handleErr, context.Canceled) {
				return handleErr
			}
			p.logger.Printf("handler error (event_type=%s, enrollment=%s, offset=%d): %v", event.EventType, event.AggregateID, event.Offset, handleErr)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		} else {
			recordProcessed(event, p.now())
		}
	}
}

func (p *Processor) handle(ctx context.Context, event Message) error {
	err := p.handler.Handle(ctx, event)
	for attempt := 1; err != nil && attempt <= p.retries; attempt++ {
		timer := time.NewTimer(p.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		p.logger.Printf("retrying %s for enrollment %s (attempt %d/%d): %v", event.EventType, event.AggregateID, attempt, p.retries, err)
		err = p.handler.Handle(ctx, event)
	}
	return err
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown magic byte: %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	aggregateID, ok := headerValue(msg, "aggregate_id")
	if !ok {
		aggregateID = msg.Key
	}
	if len(aggregateID) == 0 {
		return Message{}, errors.New("missing enrollment id in aggregate_id header and key")
	}
	schemaSubject, _ := headerValue(msg, "schema_subject")

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		AggregateID:   string(aggregateID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
