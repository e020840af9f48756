package saga

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/service"
	"github.com/allisson/hotel-booking-saga/internal/database"
	"github.com/allisson/hotel-booking-saga/internal/metrics"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
)

// roomReservePayload is the request body sent to the room service.
type roomReservePayload struct {
	Rooms        []string  `json:"rooms"`
	CheckInDate  time.Time `json:"check_in_date"`
	CheckOutDate time.Time `json:"check_out_date"`
}

// DepositStep handles the payment service's response to the deposit request.
// On a completed deposit the booking moves PENDING→DEPOSITED and the room
// reservation request is written to the room outbox and published.
type DepositStep struct {
	step
	rooms         *usecase.Helper
	roomPublisher usecase.Publisher
}

// NewDepositStep creates a new DepositStep. The payments helper is the step's
// lock channel; the rooms helper and publisher carry the downstream request.
func NewDepositStep(
	tx database.TxManager,
	bookings BookingRepository,
	bookingService *service.BookingService,
	payments *usecase.Helper,
	rooms *usecase.Helper,
	roomPublisher usecase.Publisher,
	logger *slog.Logger,
	sagaMetrics metrics.SagaMetrics,
) *DepositStep {
	return &DepositStep{
		step: step{
			tx:       tx,
			bookings: bookings,
			service:  bookingService,
			outbox:   payments,
			logger:   logger,
			metrics:  sagaMetrics,
		},
		rooms:         rooms,
		roomPublisher: roomPublisher,
	}
}

// Process applies a completed deposit. Idempotent: without a PROCESSING
// payment row holding a PENDING booking snapshot the event is a logged no-op.
func (s *DepositStep) Process(ctx context.Context, event PaymentResponse) error {
	const stepName = "deposit_process"
	start := time.Now()

	var roomRequest *domain.OutboxMessage
	noop := true

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findProcessingRow(ctx, event.SagaID, bookingDomain.BookingStatusPending)
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
		if _, err := s.service.DepositBooking(booking); err != nil {
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

		payload, err := json.Marshal(roomReservePayload{
			Rooms:        roomNumbers(booking),
			CheckInDate:  booking.CheckInDate,
			CheckOutDate: booking.CheckOutDate,
		})
		if err != nil {
			return err
		}
		roomRequest = domain.NewOutboxMessage(
			event.SagaID,
			booking.ID,
			domain.MessageTypeRoomReserveRequest,
			payload,
			booking.Status,
			domain.SagaStatusStarted,
		)
		return s.rooms.Create(ctx, roomRequest)
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

	s.logger.Info("deposit applied, room reservation requested",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
	)
	s.record(ctx, stepName, outcomeSuccess, start)

	// publish only after the local transaction committed
	return s.roomPublisher.Send(ctx, roomRequest, s.rooms.DeliveryCallback())
}

// Rollback compensates a failed deposit: the booking is cancelled and the
// payment row is failed. A definitive COMPLETED response only compensates a
// PROCESSING row; other responses also reach STARTED rows.
func (s *DepositStep) Rollback(ctx context.Context, event PaymentResponse) error {
	const stepName = "deposit_rollback"
	start := time.Now()

	noop := true
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		row, err := s.findRollbackRow(
			ctx, event.SagaID, domain.MessageTypeDepositRequest,
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

	s.logger.Info("deposit compensated, booking cancelled",
		slog.String("saga_id", event.SagaID.String()),
		slog.String("booking_id", event.BookingID.String()),
		slog.String("payment_status", string(event.Status)),
	)
	s.record(ctx, stepName, outcomeSuccess, start)
	return nil
}

func roomNumbers(booking *bookingDomain.Booking) []string {
	numbers := make([]string, 0, len(booking.Rooms))
	for _, room := range booking.Rooms {
		numbers = append(numbers, room.Number)
	}
	return numbers
}
