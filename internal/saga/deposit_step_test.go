package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

func TestDepositStep_Process(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusPending)
	row := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusProcessing)
	event := PaymentResponse{SagaID: row.SagaID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, row.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{row}, nil)
	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.payments.On("Update", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		return msg.ID == row.ID &&
			msg.BookingStatus == bookingDomain.BookingStatusDeposited &&
			msg.SagaStatus == domain.SagaStatusProcessing &&
			msg.OutboxStatus == domain.OutboxStatusCompleted
	})).Return(nil)

	var roomRequest *domain.OutboxMessage
	f.rooms.On("Create", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		roomRequest = msg
		return msg.SagaID == row.SagaID &&
			msg.Type == domain.MessageTypeRoomReserveRequest &&
			msg.BookingStatus == bookingDomain.BookingStatusDeposited &&
			msg.SagaStatus == domain.SagaStatusStarted &&
			msg.OutboxStatus == domain.OutboxStatusStarted
	})).Return(nil)
	f.publisher.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	// the publish acknowledgment advances the room request row
	f.rooms.On("Update", mock.Anything, mock.Anything).Return(nil)

	err := step.Process(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, bookingDomain.BookingStatusDeposited, booking.Status)
	require.NotNil(t, roomRequest)
	assert.Equal(t, domain.SagaStatusProcessing, roomRequest.SagaStatus)
	assert.Equal(t, domain.OutboxStatusCompleted, roomRequest.OutboxStatus)
	f.payments.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
	f.bookings.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestDepositStep_ProcessAlreadyHandled(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusDeposited)
	event := PaymentResponse{SagaID: booking.ID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, event.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{}, nil)

	err := step.Process(context.Background(), event)
	require.NoError(t, err)

	f.bookings.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositStep_ProcessSnapshotMismatchIsNoop(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusCheckedIn)
	// a PROCESSING row exists but it belongs to the final payment leg
	row := newOutboxRow(booking, domain.MessageTypePaymentRequest, bookingDomain.BookingStatusCheckedIn, domain.SagaStatusProcessing)
	event := PaymentResponse{SagaID: row.SagaID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, row.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{row}, nil)

	err := step.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.BookingStatusCheckedIn, booking.Status)
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDepositStep_ProcessIllegalTransitionPropagates(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	// stale snapshot: the row claims PENDING but the booking already advanced
	booking := newBooking(t, bookingDomain.BookingStatusConfirmed)
	row := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusProcessing)
	event := PaymentResponse{SagaID: row.SagaID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, row.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{row}, nil)
	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)

	err := step.Process(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, bookingDomain.ErrIllegalTransition)
	// the booking and outbox row are untouched
	assert.Equal(t, bookingDomain.BookingStatusConfirmed, booking.Status)
	f.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDepositStep_ProcessDuplicateCandidatesTakesOldest(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusPending)
	first := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusProcessing)
	second := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusProcessing)
	second.SagaID = first.SagaID
	event := PaymentResponse{SagaID: first.SagaID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, first.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{first, second}, nil)
	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.payments.On("Update", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		return msg.ID == first.ID
	})).Return(nil)
	f.rooms.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.rooms.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := step.Process(context.Background(), event)
	require.NoError(t, err)
	f.payments.AssertExpectations(t)
}

func TestDepositStep_Rollback(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusPending)
	row := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusStarted)
	event := PaymentResponse{SagaID: row.SagaID, BookingID: booking.ID, Status: PaymentStatusFailed}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	// a non-definitive response compensates STARTED rows too
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, row.SagaID,
		domain.SagaStatusStarted, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{row}, nil)
	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	// the row is claimed as COMPENSATING before the booking is cancelled
	f.payments.On("Update", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		return msg.ID == row.ID && msg.SagaStatus == domain.SagaStatusCompensating
	})).Return(nil)
	f.payments.On("Update", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		return msg.ID == row.ID &&
			msg.SagaStatus == domain.SagaStatusFailed &&
			msg.OutboxStatus == domain.OutboxStatusFailed
	})).Return(nil)

	err := step.Rollback(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.BookingStatusCancelled, booking.Status)
	f.payments.AssertExpectations(t)
}

func TestDepositStep_RollbackCompletedOnlyReachesProcessing(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusPending)
	event := PaymentResponse{SagaID: booking.ID, BookingID: booking.ID, Status: PaymentStatusCompleted}

	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	// a definitive COMPLETED response only compensates a PROCESSING row
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, event.SagaID, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{}, nil)

	err := step.Rollback(context.Background(), event)
	require.NoError(t, err)
	f.bookings.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.payments.AssertExpectations(t)
}

func TestDepositStep_RollbackPersistenceFailurePropagates(t *testing.T) {
	f := newFixture(t)
	step := f.depositStep()

	booking := newBooking(t, bookingDomain.BookingStatusPending)
	row := newOutboxRow(booking, domain.MessageTypeDepositRequest, bookingDomain.BookingStatusPending, domain.SagaStatusProcessing)
	event := PaymentResponse{SagaID: row.SagaID, BookingID: booking.ID, Status: PaymentStatusFailed}

	persistErr := errors.New("update failed")
	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.payments.On("FindBySagaIDAndSagaStatus", mock.Anything, row.SagaID,
		domain.SagaStatusStarted, domain.SagaStatusProcessing).
		Return([]*domain.OutboxMessage{row}, nil)
	f.payments.On("Update", mock.Anything, mock.MatchedBy(func(msg *domain.OutboxMessage) bool {
		return msg.SagaStatus == domain.SagaStatusCompensating
	})).Return(nil)
	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(persistErr)

	err := step.Rollback(context.Background(), event)
	assert.ErrorIs(t, err, persistErr)
}
