// Package messaging carries outbox messages over Kafka and feeds downstream
// responses back into the saga. One topic per message direction; messages are
// keyed by saga id so every message of a saga lands on the same partition.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// ResponseStatus is the outcome reported by a downstream service.
type ResponseStatus string

// Downstream response statuses
const (
	ResponseStatusSuccess   ResponseStatus = "SUCCESS"
	ResponseStatusCompleted ResponseStatus = "COMPLETED"
	ResponseStatusPending   ResponseStatus = "PENDING"
	ResponseStatusFailed    ResponseStatus = "FAILED"
	ResponseStatusCancelled ResponseStatus = "CANCELLED"
)

// Envelope is the wire format shared by requests and responses. Requests carry
// the booking status snapshot taken when the outbox row was written; responses
// additionally carry the downstream outcome in Status.
type Envelope struct {
	SagaID        uuid.UUID                   `json:"saga_id"`
	BookingID     uuid.UUID                   `json:"booking_id"`
	Type          domain.MessageType          `json:"type"`
	BookingStatus bookingDomain.BookingStatus `json:"booking_status"`
	Status        ResponseStatus              `json:"status,omitempty"`
	Payload       json.RawMessage             `json:"payload,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
}

// NewEnvelope builds the request envelope for an outbox message.
func NewEnvelope(msg *domain.OutboxMessage) Envelope {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return Envelope{
		SagaID:        msg.SagaID,
		BookingID:     msg.BookingID,
		Type:          msg.Type,
		BookingStatus: msg.BookingStatus,
		Payload:       msg.Payload,
		CreatedAt:     createdAt,
	}
}

// Encode serializes the envelope to JSON.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode envelope")
	}
	return data, nil
}

// DecodeEnvelope parses an envelope from the wire.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, apperrors.Wrap(err, "failed to decode envelope")
	}
	if env.SagaID == uuid.Nil {
		return Envelope{}, apperrors.Wrap(apperrors.ErrInvalidInput, "envelope missing saga_id")
	}
	return env, nil
}
