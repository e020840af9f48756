// Package usecase implements outbox coordination: the per-channel helper used
// by saga steps and the sweeper that recovers unacknowledged publishes.
package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// OutboxRepository defines outbox message repository operations
type OutboxRepository interface {
	Channel() domain.Channel
	Create(ctx context.Context, msg *domain.OutboxMessage) error
	FindBySagaIDAndSagaStatus(
		ctx context.Context,
		sagaID uuid.UUID,
		statuses ...domain.SagaStatus,
	) ([]*domain.OutboxMessage, error)
	FindBySagaID(ctx context.Context, sagaID uuid.UUID) ([]*domain.OutboxMessage, error)
	FindUnpublished(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	Update(ctx context.Context, msg *domain.OutboxMessage) error
}

// PublishCallback is invoked by a publisher with the delivery outcome.
type PublishCallback func(ctx context.Context, msg *domain.OutboxMessage, status domain.OutboxStatus) error

// Publisher sends a serialized outbox message over the message channel and
// reports the outcome through the callback. Send must only be called after the
// local transaction that persisted the message has committed.
type Publisher interface {
	Send(ctx context.Context, msg *domain.OutboxMessage, onResult PublishCallback) error
}

// Helper provides idempotent read/update coordination over one channel's
// outbox store. It is stateless; all writes go through the repository's
// conditional update.
type Helper struct {
	repo   OutboxRepository
	logger *slog.Logger
}

// NewHelper creates a new Helper for the repository's channel.
func NewHelper(repo OutboxRepository, logger *slog.Logger) *Helper {
	return &Helper{
		repo:   repo,
		logger: logger,
	}
}

// Channel returns the domain channel this helper serves.
func (h *Helper) Channel() domain.Channel {
	return h.repo.Channel()
}

// FindBySagaAndStatus returns the saga's messages in any of the given saga
// statuses, oldest first.
func (h *Helper) FindBySagaAndStatus(
	ctx context.Context,
	sagaID uuid.UUID,
	statuses ...domain.SagaStatus,
) ([]*domain.OutboxMessage, error) {
	return h.repo.FindBySagaIDAndSagaStatus(ctx, sagaID, statuses...)
}

// FindBySaga returns every message recorded for the saga, oldest first.
func (h *Helper) FindBySaga(ctx context.Context, sagaID uuid.UUID) ([]*domain.OutboxMessage, error) {
	return h.repo.FindBySagaID(ctx, sagaID)
}

// Create persists a brand-new message.
func (h *Helper) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	return h.repo.Create(ctx, msg)
}

// Save persists the full updated message. Callers always pass the complete
// aggregate; the conditional update rejects lost updates with ErrSagaConflict.
func (h *Helper) Save(ctx context.Context, msg *domain.OutboxMessage) error {
	return h.repo.Update(ctx, msg)
}

// BuildUpdated produces the next version of the message for the new booking
// status: the booking status snapshot is replaced and the saga status is
// re-derived through the total mapping. Pure function, no I/O; the input
// message is not mutated.
func (h *Helper) BuildUpdated(
	msg *domain.OutboxMessage,
	newBookingStatus bookingDomain.BookingStatus,
) (*domain.OutboxMessage, error) {
	sagaStatus, err := domain.BookingStatusToSagaStatus(newBookingStatus)
	if err != nil {
		return nil, err
	}

	updated := *msg
	updated.BookingStatus = newBookingStatus
	updated.SagaStatus = sagaStatus
	return &updated, nil
}

// DeliveryCallback returns the publish-outcome handler for this channel.
//
// On COMPLETED the delivery status is advanced and, for request rows still in
// STARTED, the saga status moves to PROCESSING: the publish is acknowledged and
// the saga now waits for the downstream response. Notification rows expect no
// response, so their PROCESSING saga finishes at the acknowledgment. On FAILED
// only the delivery status is recorded; the row stays visible for the sweeper
// and for operators.
func (h *Helper) DeliveryCallback() PublishCallback {
	return func(ctx context.Context, msg *domain.OutboxMessage, status domain.OutboxStatus) error {
		msg.OutboxStatus = status

		if status == domain.OutboxStatusCompleted {
			switch {
			case msg.SagaStatus == domain.SagaStatusStarted:
				msg.SagaStatus = domain.SagaStatusProcessing
			case h.Channel() == domain.ChannelNotification && msg.SagaStatus == domain.SagaStatusProcessing:
				msg.SagaStatus = domain.SagaStatusFinished
			}
		}

		if err := h.Save(ctx, msg); err != nil {
			return err
		}

		h.logger.Info("outbox delivery recorded",
			slog.String("channel", string(h.Channel())),
			slog.String("message_id", msg.ID.String()),
			slog.String("saga_id", msg.SagaID.String()),
			slog.String("outbox_status", string(msg.OutboxStatus)),
			slog.String("saga_status", string(msg.SagaStatus)),
		)
		return nil
	}
}
