package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const eventReservationExpired = "reservation.expired"

// MessageProducer is the subset of *kafka.Writer the notifier needs.
type MessageProducer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ExpiredEvent is published once per expired reservation. Consumers key on
// OrderID; messages of one order land on one partition.
type ExpiredEvent struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// KafkaNotifier publishes expiry events instead of calling the order
// service directly.
type KafkaNotifier struct {
	producer MessageProducer
	topic    string
	now      func() time.Time
	closer   func() error
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	n := NewKafkaNotifierWithProducer(w, topic)
	n.closer = w.Close
	return n
}

func NewKafkaNotifierWithProducer(p MessageProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: p, topic: topic, now: time.Now}
}

func (n *KafkaNotifier) NotifyExpired(ctx context.Context, orderID string) error {
	payload, err := json.Marshal(ExpiredEvent{OrderID: orderID, Reason: "expired", OccurredAt: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("kafka notifier: marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: n.topic,
		Key:   []byte(orderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventReservationExpired)},
		},
	}
	if err := n.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka notifier: write to %s: %w", n.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer, if this notifier owns it.
func (n *KafkaNotifier) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}
