// Package saga implements the booking saga steps. Each step consumes one
// downstream response, holds the PROCESSING outbox row as its lock, applies
// the booking transition and the outbox update in one transaction, and emits
// the next request after commit. Rollback compensates by cancelling the
// booking and failing the row.
package saga

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RoomReservationStatus is the outcome reported by the room service.
type RoomReservationStatus string

// Room service response statuses
const (
	RoomReservationStatusSuccess   RoomReservationStatus = "SUCCESS"
	RoomReservationStatusPending   RoomReservationStatus = "PENDING"
	RoomReservationStatusFailed    RoomReservationStatus = "FAILED"
	RoomReservationStatusCancelled RoomReservationStatus = "CANCELLED"
)

// PaymentStatus is the outcome reported by the payment service.
type PaymentStatus string

// Payment service response statuses
const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// RoomReservationResponse is the inbound event from the room service.
type RoomReservationResponse struct {
	SagaID    uuid.UUID
	BookingID uuid.UUID
	Status    RoomReservationStatus
	Payload   json.RawMessage
}

// PaymentResponse is the inbound event from the payment service.
type PaymentResponse struct {
	SagaID    uuid.UUID
	BookingID uuid.UUID
	Status    PaymentStatus
	Payload   json.RawMessage
}
