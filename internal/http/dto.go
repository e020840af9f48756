package http

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/usecase"
	outboxDomain "github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// bookingResponse is the JSON shape of a booking on the inspection endpoints.
type bookingResponse struct {
	ID           uuid.UUID                   `json:"id"`
	CustomerID   uuid.UUID                   `json:"customer_id"`
	CheckInDate  time.Time                   `json:"check_in_date"`
	CheckOutDate time.Time                   `json:"check_out_date"`
	Status       bookingDomain.BookingStatus `json:"status"`
	TotalPrice   int64                       `json:"total_price"`
	Rooms        []bookingDomain.Room        `json:"rooms"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// outboxMessageResponse is the JSON shape of one outbox row.
type outboxMessageResponse struct {
	ID            uuid.UUID                   `json:"id"`
	SagaID        uuid.UUID                   `json:"saga_id"`
	BookingID     uuid.UUID                   `json:"booking_id"`
	Type          outboxDomain.MessageType    `json:"type"`
	Payload       json.RawMessage             `json:"payload"`
	BookingStatus bookingDomain.BookingStatus `json:"booking_status"`
	SagaStatus    outboxDomain.SagaStatus     `json:"saga_status"`
	OutboxStatus  outboxDomain.OutboxStatus   `json:"outbox_status"`
	Version       int                         `json:"version"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// sagaResponse groups the booking with its outbox rows per channel.
type sagaResponse struct {
	Booking  bookingResponse                    `json:"booking"`
	Messages map[string][]outboxMessageResponse `json:"messages"`
}

func mapBookingToResponse(booking *bookingDomain.Booking) bookingResponse {
	return bookingResponse{
		ID:           booking.ID,
		CustomerID:   booking.CustomerID,
		CheckInDate:  booking.CheckInDate,
		CheckOutDate: booking.CheckOutDate,
		Status:       booking.Status,
		TotalPrice:   booking.TotalPrice,
		Rooms:        booking.Rooms,
		CreatedAt:    booking.CreatedAt,
		UpdatedAt:    booking.UpdatedAt,
	}
}

func mapSagaToResponse(view *usecase.SagaView) sagaResponse {
	response := sagaResponse{
		Booking:  mapBookingToResponse(view.Booking),
		Messages: make(map[string][]outboxMessageResponse, len(view.Messages)),
	}

	for channel, messages := range view.Messages {
		mapped := make([]outboxMessageResponse, 0, len(messages))
		for _, msg := range messages {
			mapped = append(mapped, outboxMessageResponse{
				ID:            msg.ID,
				SagaID:        msg.SagaID,
				BookingID:     msg.BookingID,
				Type:          msg.Type,
				Payload:       json.RawMessage(msg.Payload),
				BookingStatus: msg.BookingStatus,
				SagaStatus:    msg.SagaStatus,
				OutboxStatus:  msg.OutboxStatus,
				Version:       msg.Version,
				CreatedAt:     msg.CreatedAt,
				UpdatedAt:     msg.UpdatedAt,
			})
		}
		response.Messages[string(channel)] = mapped
	}

	return response
}
