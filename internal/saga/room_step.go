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

// qrCodePayload parameterizes the check-in QR code notification.
type qrCodePayload struct {
	CustomerID  uuid.UUID `json:"customer_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	CheckInDate time.Time `json:"check_in_date"`
}

// RoomReservationStep handles the room service's response to the reservation
// request. On success the booking moves DEPOSITED→CONFIRMED and a QR code
// notification is written to the notification outbox and published.
type RoomReservationStep struct {
	step
	notifications         *usecase.Helper
	notificationPublisher usecase.Publisher
}

// NewRoomReservationStep creates a new RoomReservationStep. The rooms helper
// is the step's lock channel.
func NewRoomReservationStep(
	tx database.TxManager,
	bookings BookingRepository,
	bookingService *service.BookingService,
	rooms *usecase.Helper,
	notifications *usecase.Helper,
	notificationPublisher usecase.Publisher,
	logger *slog.Logger,
	sagaMetrics metrics.SagaMetrics,
) *RoomReservationStep {
	return &RoomReservationStep{
		step: step{
			tx:       tx,
			bookings: bookings,
			service:  bookingService,
			outbox:   rooms,
			logger:   logger,
			metrics:  sagaMetrics,
		},
		notifications:         notifications,
		notificationPublisher: notificationPublisher,
	}
}

// Process applies a successful reservation. Idempotent: without a PROCESSING
// room row holding a DEPOSITED booking snapshot the event is a logged no-op.
func (s *RoomReservationStep) Process(ctx context.Context, event RoomReservationResponse) error {
	const stepName = "room_reservation_process"
	start := time.Now()

	var notification *domain.OutboxMessage
	noop := true

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findProcessingRow(ctx, event.SagaID, bookingDomain.BookingStatusDeposited)
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
		if _, err := s.service.ConfirmDepositBooking(booking); err != nil {
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

		payload, err := json.Marshal(qrCodePayload{
			CustomerID:  booking.CustomerID,
			BookingID:   booking.ID,
			CheckInDate: booking.CheckInDate,
		})
		if err != nil {
			return err
		}
		notification = domain.NewOutboxMessage(
			event.SagaID,
			booking.ID,
			domain.MessageTypeQRCodeNotification,
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

	s.logger.Info("reservation confirmed, qr code notification requested",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
	)
	s.record(ctx, stepName, outcomeSuccess, start)

	// publish only after the local transaction committed
	return s.notificationPublisher.Send(ctx, notification, s.notifications.DeliveryCallback())
}

// Rollback compensates a failed or cancelled reservation: the booking is
// cancelled and the room row is failed. A definitive SUCCESS response only
// compensates a PROCESSING row; other responses also reach STARTED rows.
func (s *RoomReservationStep) Rollback(ctx context.Context, event RoomReservationResponse) error {
	const stepName = "room_reservation_rollback"
	start := time.Now()

	noop := true
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findRollbackRow(
			ctx, event.SagaID, domain.MessageTypeRoomReserveRequest,
			rollbackStatuses(event.Status == RoomReservationStatusSuccess),
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

	s.logger.Info("reservation compensated, booking cancelled",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
		slog.String("room_status", string(event.Status)),
	)
	s.record(ctx, stepName, outcomeSuccess, start)
	return nil
}
