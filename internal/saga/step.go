package saga

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/service"
	"github.com/allisson/hotel-booking-saga/internal/database"
	"github.com/allisson/hotel-booking-saga/internal/metrics"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
)

// Step outcome labels for metrics
const (
	outcomeSuccess = "success"
	outcomeNoop    = "noop"
	outcomeError   = "error"
)

// BookingRepository defines the booking persistence operations used by saga steps
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error)
	Update(ctx context.Context, booking *bookingDomain.Booking) error
}

// step holds the dependencies shared by every saga step. The outbox helper is
// the step's own channel: the one whose PROCESSING row acts as the lock.
type step struct {
	tx       database.TxManager
	bookings BookingRepository
	service  *service.BookingService
	outbox   *usecase.Helper
	logger   *slog.Logger
	metrics  metrics.SagaMetrics
}

// findProcessingRow returns the saga's PROCESSING row whose booking status
// snapshot matches the step's precondition. A missing or non-matching row
// means the event was already handled or arrived out of order, so the step
// must no-op. More than one match after filtering is a duplicate anomaly:
// logged at error level, resolved by taking the oldest row.
func (s *step) findProcessingRow(
	ctx context.Context,
	sagaID uuid.UUID,
	expectedBookingStatus bookingDomain.BookingStatus,
) (*domain.OutboxMessage, error) {
	rows, err := s.outbox.FindBySagaAndStatus(ctx, sagaID, domain.SagaStatusProcessing)
	if err != nil {
		return nil, err
	}

	var matches []*domain.OutboxMessage
	for _, row := range rows {
		if row.BookingStatus == expectedBookingStatus {
			matches = append(matches, row)
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		s.logger.Error("multiple outbox rows match the step precondition, proceeding with the oldest",
			slog.String("channel", string(s.outbox.Channel())),
			slog.String("saga_id", sagaID.String()),
			slog.String("expected_booking_status", string(expectedBookingStatus)),
			slog.Int("matches", len(matches)),
		)
	}
	return matches[0], nil
}

// findRollbackRow returns the saga's row of the step's own request type in
// any of the compensable statuses. The type filter matters on the payment
// channel: the handled deposit row stays PROCESSING after its step, so a
// check-out saga holds two PROCESSING rows there and only the message type
// tells the final payment request apart from the parked deposit. More than
// one candidate after filtering is logged and resolved by taking the oldest.
func (s *step) findRollbackRow(
	ctx context.Context,
	sagaID uuid.UUID,
	messageType domain.MessageType,
	statuses []domain.SagaStatus,
) (*domain.OutboxMessage, error) {
	rows, err := s.outbox.FindBySagaAndStatus(ctx, sagaID, statuses...)
	if err != nil {
		return nil, err
	}

	var matches []*domain.OutboxMessage
	for _, row := range rows {
		if row.Type == messageType {
			matches = append(matches, row)
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		s.logger.Error("multiple outbox rows are candidates for compensation, proceeding with the oldest",
			slog.String("channel", string(s.outbox.Channel())),
			slog.String("saga_id", sagaID.String()),
			slog.String("message_type", string(messageType)),
			slog.Int("matches", len(matches)),
		)
	}
	return matches[0], nil
}

// compensate cancels the booking and fails the outbox row. Shared by every
// step's Rollback. The row is claimed as COMPENSATING before the booking is
// touched, so a concurrent compensation loses the version race on the outbox
// row instead of double-cancelling. A booking that is already CANCELLED was
// compensated by an earlier delivery; the row is still failed so the saga
// state converges, but the booking is left alone.
func (s *step) compensate(ctx context.Context, row *domain.OutboxMessage) error {
	claimed := *row
	claimed.SagaStatus = domain.SagaStatusCompensating
	if err := s.outbox.Save(ctx, &claimed); err != nil {
		return err
	}

	booking, err := s.bookings.GetByID(ctx, claimed.BookingID)
	if err != nil {
		return err
	}

	if booking.Status == bookingDomain.BookingStatusCancelled {
		s.logger.Info("booking already cancelled, compensation only fails the outbox row",
			slog.String("channel", string(s.outbox.Channel())),
			slog.String("saga_id", claimed.SagaID.String()),
			slog.String("booking_id", booking.ID.String()),
		)
	} else {
		if _, err := s.service.CancelBooking(booking); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, booking); err != nil {
			return err
		}
	}

	updated, err := s.outbox.BuildUpdated(&claimed, bookingDomain.BookingStatusCancelled)
	if err != nil {
		return err
	}
	updated.OutboxStatus = domain.OutboxStatusFailed
	return s.outbox.Save(ctx, updated)
}

// record emits the step counter and duration histogram for one execution.
func (s *step) record(ctx context.Context, stepName, outcome string, start time.Time) {
	s.metrics.RecordStep(ctx, string(s.outbox.Channel()), stepName, outcome)
	s.metrics.RecordStepDuration(ctx, string(s.outbox.Channel()), stepName, time.Since(start), outcome)
}

// logNoop records a stale or duplicate event that produced no side effects.
func (s *step) logNoop(stepName string, sagaID uuid.UUID) {
	s.logger.Info("event already handled, skipping",
		slog.String("channel", string(s.outbox.Channel())),
		slog.String("step", stepName),
		slog.String("saga_id", sagaID.String()),
	)
}

// rollbackStatuses returns the saga statuses a compensation may act on for
// the given response. A definitive success only compensates a fully locked
// PROCESSING row; pending, failed and cancelled responses also compensate
// STARTED rows, since the forward step may never have been acknowledged.
func rollbackStatuses(definitiveSuccess bool) []domain.SagaStatus {
	if definitiveSuccess {
		return []domain.SagaStatus{domain.SagaStatusProcessing}
	}
	return []domain.SagaStatus{domain.SagaStatusStarted, domain.SagaStatusProcessing}
}
