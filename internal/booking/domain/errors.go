package domain

import (
	"fmt"

	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
)

// Domain-specific errors for booking operations.
var (
	// ErrBookingNotFound indicates the booking does not exist.
	ErrBookingNotFound = apperrors.Wrap(apperrors.ErrNotFound, "booking not found")

	// ErrIllegalTransition indicates a status transition was attempted from a
	// status that does not allow it.
	ErrIllegalTransition = apperrors.New("illegal booking status transition")
)

// IllegalTransitionError carries the attempted transition for diagnostics.
// It matches ErrIllegalTransition through errors.Is.
type IllegalTransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("booking %s: illegal transition from %s to %s", e.BookingID, e.From, e.To)
}

// Unwrap makes the error match ErrIllegalTransition.
func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

func illegalTransition(b *Booking, to BookingStatus) error {
	return &IllegalTransitionError{
		BookingID: b.ID.String(),
		From:      b.Status,
		To:        to,
	}
}
