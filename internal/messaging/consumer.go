package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded envelope. Returning an error leaves the offset
// uncommitted so the message is redelivered after a rebalance or restart.
type Handler func(ctx context.Context, env Envelope) error

// kafkaReader abstracts kafka.Reader for tests.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads a response topic and dispatches each envelope to the
// handler, committing offsets only after the handler succeeds.
type KafkaConsumer struct {
	reader  kafkaReader
	topic   string
	handler Handler
	logger  *slog.Logger
}

// NewKafkaConsumer creates a consumer for the topic within the consumer group.
func NewKafkaConsumer(
	brokers []string,
	groupID string,
	topic string,
	handler Handler,
	logger *slog.Logger,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return &KafkaConsumer{
		reader:  reader,
		topic:   topic,
		handler: handler,
		logger:  logger,
	}
}

// Start consumes messages until the context is cancelled. Undecodable
// messages are committed and skipped so a poison message cannot wedge the
// partition; handler errors leave the offset uncommitted.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer", slog.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("stopping consumer", slog.String("topic", c.topic))
				return ctx.Err()
			}
			c.logger.Error("failed to fetch message",
				slog.String("topic", c.topic),
				slog.Any("error", err),
			)
			continue
		}

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.logger.Error("skipping undecodable message",
				slog.String("topic", c.topic),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err),
			)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := c.handler(ctx, env); err != nil {
			c.logger.Error("handler failed, message will be redelivered",
				slog.String("topic", c.topic),
				slog.String("saga_id", env.SagaID.String()),
				slog.Any("error", err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close shuts down the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
