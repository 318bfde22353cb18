package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

var producedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "challenge_service",
	Subsystem: "producer",
	Name:      "messages_total",
	Help:      "Enrollment event records handed to Kafka, by event type and result.",
}, []string{"topic", "event_type", "result"})

func init() {
	prometheus.MustRegister(producedCounter)
}

// ProducerOption configures the writers created by KafkaProducer.
type ProducerOption func(*kafka.Writer)

// WithBatchTimeout bounds how long a writer waits to fill a batch. Dispatcher batches
// are already grouped, so a short timeout keeps enrollment events flowing promptly.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		w.BatchTimeout = d
	}
}

// WithWriteTimeout bounds a single write to the brokers.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		w.WriteTimeout = d
	}
}

// KafkaProducer lazily manages one synchronous writer per topic. Records are keyed by
// enrollment id, and hash balancing keeps one enrollment's events on one partition
// in the order they were committed.
type KafkaProducer struct {
	brokers []string
	opts    []ProducerOption
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		opts:    opts,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	err := p.writerForTopic(topic).WriteMessages(ctx, msgs...)
	recordProduced(topic, msgs, err)
	return err
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}
	for _, opt := range p.opts {
		opt(writer)
	}
	p.writers[topic] = writer
	return writer
}

// recordProduced counts each record under its event_type header. A failed batch
// counts every record as failed; kafka-go does not report partial success here.
func recordProduced(topic string, msgs []kafka.Message, err error) {
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	for _, msg := range msgs {
		eventType := "unknown"
		for _, header := range msg.Headers {
			if header.Key == headerEventType {
				eventType = string(header.Value)
				break
			}
		}
		producedCounter.WithLabelValues(topic, eventType, result).Inc()
	}
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for topic, writer := range p.writers {
		errs = errors.Join(errs, writer.Close())
		delete(p.writers, topic)
	}
	return errs
}
