// Package usecase implements the booking commands that start and advance the
// saga from the operator side: create, check-in, check-out and read access
// for the ops API.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	"github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/service"
	"github.com/allisson/hotel-booking-saga/internal/database"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
	outboxDomain "github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
	appValidation "github.com/allisson/hotel-booking-saga/internal/validation"
)

// RoomInput is one room line on a booking request.
type RoomInput struct {
	Number       string `json:"number"`
	RatePerNight int64  `json:"rate_per_night"`
}

// CreateBookingInput contains the input data for creating a booking
type CreateBookingInput struct {
	CustomerID   uuid.UUID   `json:"customer_id"`
	CheckInDate  time.Time   `json:"check_in_date"`
	CheckOutDate time.Time   `json:"check_out_date"`
	Rooms        []RoomInput `json:"rooms"`
}

// SagaView is the read model for the ops API: a booking plus every outbox row
// recorded for its saga, grouped by channel.
type SagaView struct {
	Booking  *domain.Booking                                        `json:"booking"`
	Messages map[outboxDomain.Channel][]*outboxDomain.OutboxMessage `json:"messages"`
}

// UseCase defines the interface for booking business logic operations
type UseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	CheckInBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	CheckOutBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	GetSaga(ctx context.Context, sagaID uuid.UUID) (*SagaView, error)
}

// BookingRepository interface defines booking repository operations
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
}

// depositPayload is the request body sent to the payment service for the deposit.
type depositPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Amount     int64     `json:"amount"`
}

// paymentPayload is the request body sent to the payment service at check-out.
type paymentPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Amount     int64     `json:"amount"`
}

// BookingUseCase handles booking-related business logic
type BookingUseCase struct {
	txManager        database.TxManager
	bookingRepo      BookingRepository
	bookingService   *service.BookingService
	payments         *usecase.Helper
	rooms            *usecase.Helper
	notifications    *usecase.Helper
	paymentPublisher usecase.Publisher
	logger           *slog.Logger
}

// NewBookingUseCase creates a new BookingUseCase
func NewBookingUseCase(
	txManager database.TxManager,
	bookingRepo BookingRepository,
	bookingService *service.BookingService,
	payments *usecase.Helper,
	rooms *usecase.Helper,
	notifications *usecase.Helper,
	paymentPublisher usecase.Publisher,
	logger *slog.Logger,
) *BookingUseCase {
	return &BookingUseCase{
		txManager:        txManager,
		bookingRepo:      bookingRepo,
		bookingService:   bookingService,
		payments:         payments,
		rooms:            rooms,
		notifications:    notifications,
		paymentPublisher: paymentPublisher,
		logger:           logger,
	}
}

// validateCreateBookingInput validates the booking input using jellydator/validation
func (uc *BookingUseCase) validateCreateBookingInput(input CreateBookingInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.CustomerID,
			validation.By(func(value interface{}) error {
				id, ok := value.(uuid.UUID)
				if !ok || id == uuid.Nil {
					return validation.NewError("validation_customer_id", "customer_id is required")
				}
				return nil
			}),
		),
		validation.Field(&input.CheckInDate,
			validation.Required.Error("check_in_date is required"),
		),
		validation.Field(&input.CheckOutDate,
			validation.Required.Error("check_out_date is required"),
			appValidation.DateAfter{
				Reference: input.CheckInDate,
				Message:   "check_out_date must be after check_in_date",
			},
		),
		validation.Field(&input.Rooms,
			validation.Required.Error("at least one room is required"),
			validation.Each(validation.By(func(value interface{}) error {
				room, ok := value.(RoomInput)
				if !ok {
					return validation.NewError("validation_room", "invalid room")
				}
				if err := appValidation.NotBlank.Validate(room.Number); err != nil {
					return validation.NewError("validation_room_number", "room number must not be blank")
				}
				if room.RatePerNight < 0 {
					return validation.NewError("validation_room_rate", "rate_per_night must not be negative")
				}
				return nil
			})),
		),
	)
	return appValidation.WrapValidationError(err)
}

// CreateBooking creates a PENDING booking and its deposit request in one
// transaction, then publishes the request. This starts the saga: the payment
// service's deposit response drives the next step.
func (uc *BookingUseCase) CreateBooking(
	ctx context.Context,
	input CreateBookingInput,
) (*domain.Booking, error) {
	if err := uc.validateCreateBookingInput(input); err != nil {
		return nil, err
	}

	rooms := make([]domain.Room, 0, len(input.Rooms))
	for _, room := range input.Rooms {
		rooms = append(rooms, domain.Room{Number: room.Number, RatePerNight: room.RatePerNight})
	}
	booking := domain.NewBooking(input.CustomerID, input.CheckInDate, input.CheckOutDate, rooms)

	payload, err := json.Marshal(depositPayload{
		CustomerID: booking.CustomerID,
		Amount:     booking.TotalPrice,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal deposit payload")
	}

	// the booking id doubles as the saga id for the whole run
	depositRequest := outboxDomain.NewOutboxMessage(
		booking.ID,
		booking.ID,
		outboxDomain.MessageTypeDepositRequest,
		payload,
		booking.Status,
		outboxDomain.SagaStatusStarted,
	)

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.bookingRepo.Create(ctx, booking); err != nil {
			return err
		}
		return uc.payments.Create(ctx, depositRequest)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("booking created, deposit requested",
		slog.String("booking_id", booking.ID.String()),
		slog.String("customer_id", booking.CustomerID.String()),
		slog.Int64("total_price", booking.TotalPrice),
	)

	// publish only after the local transaction committed
	if err := uc.paymentPublisher.Send(ctx, depositRequest, uc.payments.DeliveryCallback()); err != nil {
		return nil, err
	}
	return booking, nil
}

// CheckInBooking records the guest's arrival. Requires CONFIRMED; purely
// local, no saga message is emitted until check-out.
func (uc *BookingUseCase) CheckInBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = uc.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := uc.bookingService.CheckInBooking(booking); err != nil {
			return err
		}
		return uc.bookingRepo.Update(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("booking checked in", slog.String("booking_id", bookingID.String()))
	return booking, nil
}

// CheckOutBooking issues the final payment request for a CHECKED_IN booking.
// The booking itself stays CHECKED_IN; the payment response drives
// PAID→CHECKED_OUT through the payment saga step.
func (uc *BookingUseCase) CheckOutBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var booking *domain.Booking
	var paymentRequest *outboxDomain.OutboxMessage

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = uc.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != domain.BookingStatusCheckedIn {
			return &domain.IllegalTransitionError{
				BookingID: booking.ID.String(),
				From:      booking.Status,
				To:        domain.BookingStatusCheckedOut,
			}
		}

		payload, err := json.Marshal(paymentPayload{
			CustomerID: booking.CustomerID,
			Amount:     booking.TotalPrice,
		})
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal payment payload")
		}
		paymentRequest = outboxDomain.NewOutboxMessage(
			booking.ID,
			booking.ID,
			outboxDomain.MessageTypePaymentRequest,
			payload,
			booking.Status,
			outboxDomain.SagaStatusStarted,
		)
		return uc.payments.Create(ctx, paymentRequest)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("check-out requested, awaiting final payment",
		slog.String("booking_id", bookingID.String()),
	)

	// publish only after the local transaction committed
	if err := uc.paymentPublisher.Send(ctx, paymentRequest, uc.payments.DeliveryCallback()); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking retrieves a booking by ID
func (uc *BookingUseCase) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return uc.bookingRepo.GetByID(ctx, bookingID)
}

// GetSaga retrieves a booking and every outbox row of its saga run. Used by
// support tooling to diagnose stuck sagas.
func (uc *BookingUseCase) GetSaga(ctx context.Context, sagaID uuid.UUID) (*SagaView, error) {
	booking, err := uc.bookingRepo.GetByID(ctx, sagaID)
	if err != nil {
		return nil, err
	}

	view := &SagaView{
		Booking:  booking,
		Messages: make(map[outboxDomain.Channel][]*outboxDomain.OutboxMessage),
	}
	for _, helper := range []*usecase.Helper{uc.payments, uc.rooms, uc.notifications} {
		messages, err := helper.FindBySaga(ctx, sagaID)
		if err != nil {
			return nil, err
		}
		view.Messages[helper.Channel()] = messages
	}
	return view, nil
}
