package domain

import (
	"fmt"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
)

// Domain-specific errors for outbox operations.
var (
	// ErrMessageNotFound indicates no outbox row matched the lookup.
	ErrMessageNotFound = apperrors.Wrap(apperrors.ErrNotFound, "outbox message not found")

	// ErrSagaConflict indicates a conditional status update lost the race to a
	// concurrent delivery of the same event.
	ErrSagaConflict = apperrors.Wrap(apperrors.ErrConflict, "outbox message was updated concurrently")
)

// UnmappedBookingStatusError reports a booking status without a saga status
// mapping. Seeing it means a new BookingStatus value was added without
// extending BookingStatusToSagaStatus.
type UnmappedBookingStatusError struct {
	Status bookingDomain.BookingStatus
}

// Error implements the error interface.
func (e *UnmappedBookingStatusError) Error() string {
	return fmt.Sprintf("no saga status mapping for booking status %q", e.Status)
}
