package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/segmentio/kafka-go"

	"daily-routine-service/internal/routine-manager/events"
)

const writeTimeout = 10 * time.Second

func NewKafkaProducer(brokers []string, topic string) *kafka.Writer {
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
		Async:        false,
	})
	hlog.Infof("Routine Manager Kafka producer configured for topic: %s", topic)
	return producer
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EventPublisher exports completion events to Kafka. Handle is an events.Handler.
type EventPublisher struct {
	Writer MessageWriter
}

func NewEventPublisher(w MessageWriter) *EventPublisher {
	return &EventPublisher{Writer: w}
}

func (p *EventPublisher) Handle(ctx context.Context, e events.CompletionEvent) error {
	payload, err := events.Encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode completion event %s: %w", e.ID, err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.Writer.WriteMessages(writeCtx, kafka.Message{Key: e.Key(), Value: payload}); err != nil {
		return fmt.Errorf("failed to send completion event %s to Kafka: %w", e.ID, err)
	}
	hlog.Infof("Completion event %s (task %s, %s) dispatched to Kafka.", e.ID, e.TaskID, e.Status)
	return nil
}
