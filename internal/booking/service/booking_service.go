// Package service implements pure booking domain operations used by saga steps.
// Each operation applies one guarded status transition and returns an event
// wrapping the post-transition booking, so steps never re-derive status.
package service

import (
	"github.com/allisson/hotel-booking-saga/internal/booking/domain"
)

// BookingService exposes the domain transitions as named business operations.
// It performs no I/O; persistence belongs to the calling step's transaction.
type BookingService struct{}

// NewBookingService creates a new BookingService.
func NewBookingService() *BookingService {
	return &BookingService{}
}

// DepositBooking records the deposit payment for a pending booking.
func (s *BookingService) DepositBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.Deposit(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingDepositedEvent, booking), nil
}

// ConfirmDepositBooking confirms the booking once the room reservation (and its
// deposit) is secured.
func (s *BookingService) ConfirmDepositBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.Confirm(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingConfirmedEvent, booking), nil
}

// CheckInBooking records the guest's arrival.
func (s *BookingService) CheckInBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.CheckIn(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingCheckedInEvent, booking), nil
}

// PayBooking records the final payment.
func (s *BookingService) PayBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.Pay(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingPaidEvent, booking), nil
}

// CheckOutBooking completes a paid booking.
func (s *BookingService) CheckOutBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.CheckOut(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingCheckedOutEvent, booking), nil
}

// CancelBooking compensates the booking after a failed saga step.
func (s *BookingService) CancelBooking(booking *domain.Booking) (*domain.BookingEvent, error) {
	if err := booking.Cancel(); err != nil {
		return nil, err
	}
	return domain.NewBookingEvent(domain.BookingCancelledEvent, booking), nil
}
