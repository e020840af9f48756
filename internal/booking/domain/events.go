package domain

import "time"

// BookingEventType identifies the domain transition an event describes.
type BookingEventType string

const (
	BookingCreatedEvent    BookingEventType = "booking.created"
	BookingDepositedEvent  BookingEventType = "booking.deposited"
	BookingConfirmedEvent  BookingEventType = "booking.confirmed"
	BookingCheckedInEvent  BookingEventType = "booking.checked_in"
	BookingPaidEvent       BookingEventType = "booking.paid"
	BookingCheckedOutEvent BookingEventType = "booking.checked_out"
	BookingCancelledEvent  BookingEventType = "booking.cancelled"
)

// BookingEvent wraps the post-transition booking snapshot. Saga steps use the
// event's status directly instead of re-deriving it.
type BookingEvent struct {
	Type       BookingEventType
	Booking    *Booking
	OccurredAt time.Time
}

// NewBookingEvent creates an event for the booking's current state.
func NewBookingEvent(eventType BookingEventType, booking *Booking) *BookingEvent {
	return &BookingEvent{
		Type:       eventType,
		Booking:    booking,
		OccurredAt: time.Now().UTC(),
	}
}
