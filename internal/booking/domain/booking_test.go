package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	checkIn := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 9, 4, 11, 0, 0, 0, time.UTC)
	return NewBooking(uuid.Must(uuid.NewV7()), checkIn, checkOut, []Room{
		{Number: "101", RatePerNight: 12000},
		{Number: "102", RatePerNight: 15000},
	})
}

func TestNewBooking(t *testing.T) {
	booking := newTestBooking(t)

	assert.NotEqual(t, uuid.Nil, booking.ID)
	assert.Equal(t, BookingStatusPending, booking.Status)
	// 2 nights and change rounds down to 2 nights, 2 rooms
	assert.Equal(t, int64(2*12000+2*15000), booking.TotalPrice)
	assert.Len(t, booking.Rooms, 2)
}

func TestNewBooking_MinimumOneNight(t *testing.T) {
	checkIn := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(6 * time.Hour)
	booking := NewBooking(uuid.Must(uuid.NewV7()), checkIn, checkOut, []Room{
		{Number: "101", RatePerNight: 12000},
	})

	assert.Equal(t, int64(12000), booking.TotalPrice)
}

func TestBooking_HappyPath(t *testing.T) {
	booking := newTestBooking(t)

	require.NoError(t, booking.Deposit())
	assert.Equal(t, BookingStatusDeposited, booking.Status)

	require.NoError(t, booking.Confirm())
	assert.Equal(t, BookingStatusConfirmed, booking.Status)

	require.NoError(t, booking.CheckIn())
	assert.Equal(t, BookingStatusCheckedIn, booking.Status)

	require.NoError(t, booking.Pay())
	assert.Equal(t, BookingStatusPaid, booking.Status)

	require.NoError(t, booking.CheckOut())
	assert.Equal(t, BookingStatusCheckedOut, booking.Status)
	assert.True(t, booking.Status.IsTerminal())
}

func TestBooking_ConfirmFromPending(t *testing.T) {
	// deposit can arrive fused with the reservation confirmation
	booking := newTestBooking(t)

	require.NoError(t, booking.Confirm())
	assert.Equal(t, BookingStatusConfirmed, booking.Status)
}

func TestBooking_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(b *Booking)
		attempt func(b *Booking) error
	}{
		{
			name:    "deposit after confirm",
			prepare: func(b *Booking) { _ = b.Confirm() },
			attempt: func(b *Booking) error { return b.Deposit() },
		},
		{
			name:    "confirm after check-in",
			prepare: func(b *Booking) { _ = b.Confirm(); _ = b.CheckIn() },
			attempt: func(b *Booking) error { return b.Confirm() },
		},
		{
			name:    "check-in while pending",
			prepare: func(b *Booking) {},
			attempt: func(b *Booking) error { return b.CheckIn() },
		},
		{
			name:    "pay before check-in",
			prepare: func(b *Booking) { _ = b.Confirm() },
			attempt: func(b *Booking) error { return b.Pay() },
		},
		{
			name:    "check-out before payment",
			prepare: func(b *Booking) { _ = b.Confirm(); _ = b.CheckIn() },
			attempt: func(b *Booking) error { return b.CheckOut() },
		},
		{
			name:    "cancel after payment",
			prepare: func(b *Booking) { _ = b.Confirm(); _ = b.CheckIn(); _ = b.Pay() },
			attempt: func(b *Booking) error { return b.Cancel() },
		},
		{
			name: "cancel after check-out",
			prepare: func(b *Booking) {
				_ = b.Confirm()
				_ = b.CheckIn()
				_ = b.Pay()
				_ = b.CheckOut()
			},
			attempt: func(b *Booking) error { return b.Cancel() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := newTestBooking(t)
			tt.prepare(booking)
			statusBefore := booking.Status

			err := tt.attempt(booking)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, ErrIllegalTransition))
			// a failed transition leaves the status untouched
			assert.Equal(t, statusBefore, booking.Status)

			var transitionErr *IllegalTransitionError
			require.True(t, apperrors.As(err, &transitionErr))
			assert.Equal(t, statusBefore, transitionErr.From)
		})
	}
}

func TestBooking_CancelFromEveryCompensableStatus(t *testing.T) {
	prepare := map[BookingStatus]func(b *Booking){
		BookingStatusPending:   func(b *Booking) {},
		BookingStatusDeposited: func(b *Booking) { _ = b.Deposit() },
		BookingStatusConfirmed: func(b *Booking) { _ = b.Confirm() },
		BookingStatusCheckedIn: func(b *Booking) { _ = b.Confirm(); _ = b.CheckIn() },
	}

	for status, setup := range prepare {
		t.Run(string(status), func(t *testing.T) {
			booking := newTestBooking(t)
			setup(booking)
			require.Equal(t, status, booking.Status)

			require.NoError(t, booking.Cancel())
			assert.Equal(t, BookingStatusCancelled, booking.Status)
			assert.True(t, booking.Status.IsTerminal())
		})
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	for _, status := range AllBookingStatuses {
		expected := status == BookingStatusCheckedOut || status == BookingStatusCancelled
		assert.Equal(t, expected, status.IsTerminal(), "status %s", status)
	}
}

func TestNewBookingEvent(t *testing.T) {
	booking := newTestBooking(t)
	event := NewBookingEvent(BookingCreatedEvent, booking)

	assert.Equal(t, BookingCreatedEvent, event.Type)
	assert.Same(t, booking, event.Booking)
	assert.False(t, event.OccurredAt.IsZero())
}
