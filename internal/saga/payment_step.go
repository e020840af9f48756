package saga

import (
	"context"
	"encoding/json"
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

// receiptPayload parameterizes the check-out receipt notification.
type receiptPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	TotalPrice int64     `json:"total_price"`
}

// PaymentStep handles the payment service's response to the final payment
// request issued at check-out. On a completed payment the booking moves
// CHECKED_IN→PAID→CHECKED_OUT and a receipt notification is written to the
// notification outbox and published.
type PaymentStep struct {
	step
	notifications         *usecase.Helper
	notificationPublisher usecase.Publisher
}

// NewPaymentStep creates a new PaymentStep. The payments helper is the step's
// lock channel.
func NewPaymentStep(
	tx database.TxManager,
	bookings BookingRepository,
	bookingService *service.BookingService,
	payments *usecase.Helper,
	notifications *usecase.Helper,
	notificationPublisher usecase.Publisher,
	logger *slog.Logger,
	sagaMetrics metrics.SagaMetrics,
) *PaymentStep {
	return &PaymentStep{
		step: step{
			tx:       tx,
			bookings: bookings,
			service:  bookingService,
			outbox:   payments,
			logger:   logger,
			metrics:  sagaMetrics,
		},
		notifications:         notifications,
		notificationPublisher: notificationPublisher,
	}
}

// Process applies a completed final payment. Pay and check-out commit
// together: a crash between them cannot leave a PAID booking without its
// outbox update. Idempotent: without a PROCESSING payment row holding a
// CHECKED_IN booking snapshot the event is a logged no-op.
func (s *PaymentStep) Process(ctx context.Context, event PaymentResponse) error {
	const stepName = "payment_process"
	start := time.Now()

	var notification *domain.OutboxMessage
	noop := true

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findProcessingRow(ctx, event.SagaID, bookingDomain.BookingStatusCheckedIn)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		noop = false

		booking, err := s.bookings.GetByID(ctx, row.BookingID)
		if err != nil {
			return err
		}
		if _, err := s.service.PayBooking(booking); err != nil {
			return err
		}
		if _, err := s.service.CheckOutBooking(booking); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, booking); err != nil {
			return err
		}

		updated, err := s.outbox.BuildUpdated(row, booking.Status)
		if err != nil {
			return err
		}
		updated.OutboxStatus = domain.OutboxStatusCompleted
		if err := s.outbox.Save(ctx, updated); err != nil {
			return err
		}

		payload, err := json.Marshal(receiptPayload{
			CustomerID: booking.CustomerID,
			BookingID:  booking.ID,
			TotalPrice: booking.TotalPrice,
		})
		if err != nil {
			return err
		}
		notification = domain.NewOutboxMessage(
			event.SagaID,
			booking.ID,
			domain.MessageTypeReceiptNotification,
			payload,
			booking.Status,
			domain.SagaStatusProcessing,
		)
		return s.notifications.Create(ctx, notification)
	})
	if err != nil {
		s.record(ctx, stepName, outcomeError, start)
		return err
	}
	if noop {
		s.logNoop(stepName, event.SagaID)
		s.record(ctx, stepName, outcomeNoop, start)
		return nil
	}

	s.logger.Info("payment applied, booking checked out, receipt requested",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
	)
	s.record(ctx, stepName, outcomeSuccess, start)

	// publish only after the local transaction committed
	return s.notificationPublisher.Send(ctx, notification, s.notifications.DeliveryCallback())
}

// Rollback compensates a failed final payment: the booking is cancelled and
// the payment row is failed. A definitive COMPLETED response only compensates
// a PROCESSING row; other responses also reach STARTED rows.
func (s *PaymentStep) Rollback(ctx context.Context, event PaymentResponse) error {
	const stepName = "payment_rollback"
	start := time.Now()

	noop := true
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findRollbackRow(
			ctx, event.SagaID, domain.MessageTypePaymentRequest,
			rollbackStatuses(event.Status == PaymentStatusCompleted),
		)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		noop = false
		return s.compensate(ctx, row)
	})
	if err != nil {
		s.record(ctx, stepName, outcomeError, start)
		return err
	}
	if noop {
		s.logNoop(stepName, event.SagaID)
		s.record(ctx, stepName, outcomeNoop, start)
		return nil
	}

	s.logger.Info("payment compensated, booking cancelled",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
		slog.String("payment_status", string(event.Status)),
	)
	s.record(ctx, stepName, outcomeSuccess, start)
	return nil
}
