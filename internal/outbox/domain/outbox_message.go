// Package domain defines the outbox message entity and the saga status machine.
//
// One outbox table exists per domain channel (room, payment, notification); the
// rows are structurally identical so a single Go type covers all three. Rows are
// never deleted: finished sagas stay around for idempotency lookups and audit.
package domain

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
)

// Channel identifies the domain channel an outbox message belongs to.
type Channel string

const (
	ChannelRoom         Channel = "room"
	ChannelPayment      Channel = "payment"
	ChannelNotification Channel = "notification"
)

// SagaStatus is the coordination-level state of one saga step, distinct from
// the booking's own status.
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "STARTED"
	SagaStatusProcessing   SagaStatus = "PROCESSING"
	SagaStatusFinished     SagaStatus = "FINISHED"
	SagaStatusFailed       SagaStatus = "FAILED"
	SagaStatusCompensating SagaStatus = "COMPENSATING"
)

// OutboxStatus is the delivery state of the outbound publish.
type OutboxStatus string

const (
	OutboxStatusStarted   OutboxStatus = "STARTED"
	OutboxStatusCompleted OutboxStatus = "COMPLETED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// MessageType is the logical kind of an outbox message.
type MessageType string

const (
	MessageTypeDepositRequest      MessageType = "deposit-request"
	MessageTypeRoomReserveRequest  MessageType = "room-reserve-request"
	MessageTypePaymentRequest      MessageType = "payment-request"
	MessageTypeQRCodeNotification  MessageType = "qr-code-notification"
	MessageTypeReceiptNotification MessageType = "receipt-notification"
)

// OutboxMessage is one durable outbound message plus its saga bookkeeping.
// Version is an optimistic concurrency token: every update must carry the
// version it read, so two concurrent deliveries of the same event cannot both
// win the status transition.
type OutboxMessage struct {
	ID            uuid.UUID
	SagaID        uuid.UUID
	BookingID     uuid.UUID
	Type          MessageType
	Payload       []byte
	BookingStatus bookingDomain.BookingStatus
	SagaStatus    SagaStatus
	OutboxStatus  OutboxStatus
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxMessage creates a message in OutboxStatus STARTED with a fresh id.
// The saga status is derived from the booking status snapshot unless the caller
// overrides it afterwards (notification fan-out rows start in PROCESSING).
func NewOutboxMessage(
	sagaID, bookingID uuid.UUID,
	messageType MessageType,
	payload []byte,
	bookingStatus bookingDomain.BookingStatus,
	sagaStatus SagaStatus,
) *OutboxMessage {
	return &OutboxMessage{
		ID:            uuid.Must(uuid.NewV7()),
		SagaID:        sagaID,
		BookingID:     bookingID,
		Type:          messageType,
		Payload:       payload,
		BookingStatus: bookingStatus,
		SagaStatus:    sagaStatus,
		OutboxStatus:  OutboxStatusStarted,
		Version:       0,
	}
}

// BookingStatusToSagaStatus maps the booking status to the saga status that the
// outbox row must record after the step persisted that booking state. The
// mapping is total: every BookingStatus value is handled explicitly and an
// unknown value is an error, so adding a booking status forces a decision here.
func BookingStatusToSagaStatus(status bookingDomain.BookingStatus) (SagaStatus, error) {
	switch status {
	case bookingDomain.BookingStatusPending:
		return SagaStatusStarted, nil
	case bookingDomain.BookingStatusDeposited:
		return SagaStatusProcessing, nil
	case bookingDomain.BookingStatusConfirmed:
		return SagaStatusFinished, nil
	case bookingDomain.BookingStatusCheckedIn:
		return SagaStatusStarted, nil
	case bookingDomain.BookingStatusPaid:
		return SagaStatusProcessing, nil
	case bookingDomain.BookingStatusCheckedOut:
		return SagaStatusFinished, nil
	case bookingDomain.BookingStatusCancelled:
		return SagaStatusFailed, nil
	default:
		return "", &UnmappedBookingStatusError{Status: status}
	}
}
