package saga

import (
	"context"
	"log/slog"

	"github.com/allisson/hotel-booking-saga/internal/messaging"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// NewRoomResponseHandler routes room service responses: SUCCESS drives the
// forward step, every other status drives compensation.
func NewRoomResponseHandler(step *RoomReservationStep, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		event := RoomReservationResponse{
			SagaID:    env.SagaID,
			BookingID: env.BookingID,
			Status:    RoomReservationStatus(env.Status),
			Payload:   env.Payload,
		}

		switch event.Status {
		case RoomReservationStatusSuccess:
			return step.Process(ctx, event)
		case RoomReservationStatusPending, RoomReservationStatusFailed, RoomReservationStatusCancelled:
			return step.Rollback(ctx, event)
		default:
			logger.Error("unknown room reservation status, skipping message",
				slog.String("saga_id", env.SagaID.String()),
				slog.String("status", string(env.Status)),
			)
			return nil
		}
	}
}

// NewPaymentResponseHandler routes payment service responses by request type:
// deposit responses to the deposit step, final payment responses to the
// payment step. COMPLETED drives the forward step, every other status drives
// compensation.
func NewPaymentResponseHandler(
	depositStep *DepositStep,
	paymentStep *PaymentStep,
	logger *slog.Logger,
) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		event := PaymentResponse{
			SagaID:    env.SagaID,
			BookingID: env.BookingID,
			Status:    PaymentStatus(env.Status),
			Payload:   env.Payload,
		}

		var process, rollback func(context.Context, PaymentResponse) error
		switch env.Type {
		case domain.MessageTypeDepositRequest:
			process, rollback = depositStep.Process, depositStep.Rollback
		case domain.MessageTypePaymentRequest:
			process, rollback = paymentStep.Process, paymentStep.Rollback
		default:
			logger.Error("unknown payment response type, skipping message",
				slog.String("saga_id", env.SagaID.String()),
				slog.String("type", string(env.Type)),
			)
			return nil
		}

		switch event.Status {
		case PaymentStatusCompleted:
			return process(ctx, event)
		case PaymentStatusPending, PaymentStatusFailed, PaymentStatusCancelled:
			return rollback(ctx, event)
		default:
			logger.Error("unknown payment status, skipping message",
				slog.String("saga_id", env.SagaID.String()),
				slog.String("status", string(env.Status)),
			)
			return nil
		}
	}
}
