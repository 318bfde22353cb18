package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes.
const (
	outcomeProcessed    = "processed"
	outcomeHandlerError = "handler_error"
	outcomeDecodeError  = "decode_error"
)

// unknownEventType labels records whose event_type header could not be read.
const unknownEventType = "unknown"

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Enrollment event records read from Kafka, by event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	deliveryLag = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "challenge_service",
		Subsystem: "consumer",
		Name:      "delivery_lag_seconds",
		Help:      "Delay between a record's Kafka timestamp and its successful handling.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"event_type"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "challenge_service",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Kafka timestamp of the newest handled record per enrollment event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(messagesCounter, deliveryLag, lastMessageGauge)
}

func recordProcessed(msg Message, now time.Time) {
	messagesCounter.WithLabelValues(msg.Topic, msg.EventType, outcomeProcessed).Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	deliveryLag.WithLabelValues(msg.EventType).Observe(max(0, now.Sub(msg.Timestamp).Seconds()))
	lastMessageGauge.WithLabelValues(msg.EventType).Set(float64(msg.Timestamp.Unix()))
}

func recordHandlerError(msg Message) {
	messagesCounter.WithLabelValues(msg.Topic, msg.EventType, outcomeHandlerError).Inc()
}

func recordDecodeError(topic, eventType string) {
	if eventType == "" {
		eventType = unknownEventType
	}
	messagesCounter.WithLabelValues(topic, eventType, outcomeDecodeError).Inc()
}
