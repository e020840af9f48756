// Package domain defines the booking aggregate and its guarded status transitions.
//
// The booking lifecycle is driven exclusively by saga steps reacting to inbound
// events: PENDING -> DEPOSITED -> CONFIRMED -> CHECKED_IN -> PAID -> CHECKED_OUT,
// with CANCELLED reachable from any non-terminal state through compensation.
// Every transition validates the current status first; violating a precondition
// is a domain error, never a silent no-op.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusDeposited  BookingStatus = "DEPOSITED"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusCheckedIn  BookingStatus = "CHECKED_IN"
	BookingStatusPaid       BookingStatus = "PAID"
	BookingStatusCheckedOut BookingStatus = "CHECKED_OUT"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// AllBookingStatuses enumerates every booking status. Used by the saga status
// mapping test to assert the mapping is total.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusDeposited,
	BookingStatusConfirmed,
	BookingStatusCheckedIn,
	BookingStatusPaid,
	BookingStatusCheckedOut,
	BookingStatusCancelled,
}

// IsTerminal reports whether the status admits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCheckedOut || s == BookingStatusCancelled
}

// Room is a room line item on a booking.
type Room struct {
	Number       string `json:"number"`
	RatePerNight int64  `json:"rate_per_night"` // minor currency units
}

// Booking is the aggregate root coordinated by the saga.
type Booking struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	CheckInDate  time.Time
	CheckOutDate time.Time
	Status       BookingStatus
	TotalPrice   int64 // minor currency units
	Rooms        []Room
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBooking creates a booking in PENDING with the total price derived from the
// room rates and the length of stay.
func NewBooking(customerID uuid.UUID, checkIn, checkOut time.Time, rooms []Room) *Booking {
	nights := int64(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		nights = 1
	}

	var total int64
	for _, room := range rooms {
		total += room.RatePerNight * nights
	}

	return &Booking{
		ID:           uuid.Must(uuid.NewV7()),
		CustomerID:   customerID,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		Status:       BookingStatusPending,
		TotalPrice:   total,
		Rooms:        rooms,
	}
}

// Deposit records the deposit payment. Requires PENDING.
func (b *Booking) Deposit() error {
	if b.Status != BookingStatusPending {
		return illegalTransition(b, BookingStatusDeposited)
	}
	b.Status = BookingStatusDeposited
	return nil
}

// Confirm marks the booking as confirmed once the room reservation is secured.
// Requires PENDING or DEPOSITED; the deposit may be posted as its own step or
// arrive fused with the reservation confirmation.
func (b *Booking) Confirm() error {
	if b.Status != BookingStatusPending && b.Status != BookingStatusDeposited {
		return illegalTransition(b, BookingStatusConfirmed)
	}
	b.Status = BookingStatusConfirmed
	return nil
}

// CheckIn records the guest's arrival. Requires CONFIRMED.
func (b *Booking) CheckIn() error {
	if b.Status != BookingStatusConfirmed {
		return illegalTransition(b, BookingStatusCheckedIn)
	}
	b.Status = BookingStatusCheckedIn
	return nil
}

// Pay records the final payment. Requires CHECKED_IN.
func (b *Booking) Pay() error {
	if b.Status != BookingStatusCheckedIn {
		return illegalTransition(b, BookingStatusPaid)
	}
	b.Status = BookingStatusPaid
	return nil
}

// CheckOut completes the booking. Requires PAID.
func (b *Booking) CheckOut() error {
	if b.Status != BookingStatusPaid {
		return illegalTransition(b, BookingStatusCheckedOut)
	}
	b.Status = BookingStatusCheckedOut
	return nil
}

// Cancel compensates the booking. Allowed from any non-terminal status except
// PAID: once the final payment cleared, the only way forward is CHECK_OUT.
func (b *Booking) Cancel() error {
	if b.Status.IsTerminal() || b.Status == BookingStatusPaid {
		return illegalTransition(b, BookingStatusCancelled)
	}
	b.Status = BookingStatusCancelled
	return nil
}
