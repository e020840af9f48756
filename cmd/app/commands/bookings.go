package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/hotel-booking-saga/internal/app"
	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	bookingUsecase "github.com/allisson/hotel-booking-saga/internal/booking/usecase"
	"github.com/allisson/hotel-booking-saga/internal/config"
)

// dateLayout is the accepted format for check-in/check-out dates.
const dateLayout = "2006-01-02"

// RunCreateBooking starts a new booking saga: the booking is created in
// PENDING and the deposit request is written to the payment outbox and
// published.
//
// Requirements: Database must be migrated and accessible.
func RunCreateBooking(
	ctx context.Context,
	bookingUseCase bookingUsecase.UseCase,
	logger *slog.Logger,
	customerID string,
	checkIn string,
	checkOut string,
	roomSpecs []string,
	io IOTuple,
) error {
	customer, err := uuid.Parse(customerID)
	if err != nil {
		return fmt.Errorf("invalid customer id: %w", err)
	}

	checkInDate, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return fmt.Errorf("invalid check-in date (expected %s): %w", dateLayout, err)
	}
	checkOutDate, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return fmt.Errorf("invalid check-out date (expected %s): %w", dateLayout, err)
	}

	rooms, err := parseRooms(roomSpecs)
	if err != nil {
		return err
	}

	roomInputs := make([]bookingUsecase.RoomInput, 0, len(rooms))
	for _, room := range rooms {
		roomInputs = append(roomInputs, bookingUsecase.RoomInput{
			Number:       room.Number,
			RatePerNight: room.RatePerNight,
		})
	}

	booking, err := bookingUseCase.CreateBooking(ctx, bookingUsecase.CreateBookingInput{
		CustomerID:   customer,
		CheckInDate:  checkInDate,
		CheckOutDate: checkOutDate,
		Rooms:        roomInputs,
	})
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	logger.Info("booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("status", string(booking.Status)),
	)
	return outputBooking(booking, io)
}

// RunCheckIn records the guest's arrival on a confirmed booking.
func RunCheckIn(
	ctx context.Context,
	bookingUseCase bookingUsecase.UseCase,
	logger *slog.Logger,
	bookingID string,
	io IOTuple,
) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking id: %w", err)
	}

	booking, err := bookingUseCase.CheckInBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check in booking: %w", err)
	}

	logger.Info("booking checked in", slog.String("booking_id", booking.ID.String()))
	return outputBooking(booking, io)
}

// RunCheckOut starts the final payment leg: the payment request is written to
// the payment outbox and published; the booking moves on when the payment
// response arrives.
func RunCheckOut(
	ctx context.Context,
	bookingUseCase bookingUsecase.UseCase,
	logger *slog.Logger,
	bookingID string,
	io IOTuple,
) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking id: %w", err)
	}

	booking, err := bookingUseCase.CheckOutBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check out booking: %w", err)
	}

	logger.Info("booking check-out requested", slog.String("booking_id", booking.ID.String()))
	return outputBooking(booking, io)
}

// CreateBookingCommand wires RunCreateBooking to a fresh container.
func CreateBookingCommand(ctx context.Context, customerID, checkIn, checkOut string, roomSpecs []string) error {
	return withBookingUseCase(func(useCase bookingUsecase.UseCase, logger *slog.Logger) error {
		return RunCreateBooking(ctx, useCase, logger, customerID, checkIn, checkOut, roomSpecs, DefaultIO())
	})
}

// CheckInCommand wires RunCheckIn to a fresh container.
func CheckInCommand(ctx context.Context, bookingID string) error {
	return withBookingUseCase(func(useCase bookingUsecase.UseCase, logger *slog.Logger) error {
		return RunCheckIn(ctx, useCase, logger, bookingID, DefaultIO())
	})
}

// CheckOutCommand wires RunCheckOut to a fresh container.
func CheckOutCommand(ctx context.Context, bookingID string) error {
	return withBookingUseCase(func(useCase bookingUsecase.UseCase, logger *slog.Logger) error {
		return RunCheckOut(ctx, useCase, logger, bookingID, DefaultIO())
	})
}

// withBookingUseCase builds a container, runs fn with the booking use case and
// tears the container down.
func withBookingUseCase(fn func(bookingUsecase.UseCase, *slog.Logger) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	useCase, err := container.BookingUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize booking use case: %w", err)
	}

	return fn(useCase, logger)
}

// outputBooking writes the booking as indented JSON.
func outputBooking(booking *bookingDomain.Booking, io IOTuple) error {
	view := map[string]interface{}{
		"id":             booking.ID,
		"customer_id":    booking.CustomerID,
		"check_in_date":  booking.CheckInDate.Format(dateLayout),
		"check_out_date": booking.CheckOutDate.Format(dateLayout),
		"status":         booking.Status,
		"total_price":    booking.TotalPrice,
		"rooms":          booking.Rooms,
	}

	encoder := json.NewEncoder(io.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}
