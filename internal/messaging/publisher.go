package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
)

// kafkaWriter abstracts kafka.Writer for tests.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes outbox messages to a single topic and records the
// delivery outcome through the caller's callback. It implements
// usecase.Publisher.
type KafkaPublisher struct {
	writer kafkaWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher for the topic. Messages are keyed by
// saga id, so the hash balancer keeps each saga on one partition and its
// messages in order.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// Send publishes the message and reports the outcome through onResult. A
// broker failure is recorded as FAILED and not returned as an error: the row
// stays unacknowledged and the sweeper re-sends it later. Send returns an
// error only when the envelope cannot be built or the outcome cannot be
// recorded.
func (p *KafkaPublisher) Send(
	ctx context.Context,
	msg *domain.OutboxMessage,
	onResult usecase.PublishCallback,
) error {
	data, err := NewEnvelope(msg).Encode()
	if err != nil {
		return err
	}

	status := domain.OutboxStatusCompleted
	if writeErr := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   msg.SagaID[:],
		Value: data,
	}); writeErr != nil {
		status = domain.OutboxStatusFailed
		p.logger.Error("failed to publish outbox message",
			slog.String("topic", p.topic),
			slog.String("message_id", msg.ID.String()),
			slog.String("saga_id", msg.SagaID.String()),
			slog.Any("error", writeErr),
		)
	}

	return onResult(ctx, msg, status)
}

// Close shuts down the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
