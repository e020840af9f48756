// Package repository provides data persistence implementations for booking entities.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/database"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
)

// MySQLBookingRepository handles booking persistence for MySQL
type MySQLBookingRepository struct {
	db *sql.DB
}

// NewMySQLBookingRepository creates a new MySQLBookingRepository
func NewMySQLBookingRepository(db *sql.DB) *MySQLBookingRepository {
	return &MySQLBookingRepository{
		db: db,
	}
}

// Create inserts a new booking
func (r *MySQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	rooms, err := json.Marshal(booking.Rooms)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal rooms")
	}

	// Convert UUIDs to bytes for MySQL BINARY(16)
	idBytes, err := booking.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal booking UUID")
	}
	customerBytes, err := booking.CustomerID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal customer UUID")
	}

	query := `INSERT INTO bookings
			  (id, customer_id, check_in_date, check_out_date, status, total_price, rooms, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query,
		idBytes, customerBytes, booking.CheckInDate, booking.CheckOutDate,
		booking.Status, booking.TotalPrice, rooms,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create booking")
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *MySQLBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	var idBytes, customerBytes, rooms []byte
	querier := database.GetTx(ctx, r.db)

	queryIDBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal booking UUID")
	}

	query := `SELECT id, customer_id, check_in_date, check_out_date, status, total_price, rooms, created_at, updated_at
			  FROM bookings WHERE id = ?`

	err = querier.QueryRowContext(ctx, query, queryIDBytes).Scan(
		&idBytes, &customerBytes, &booking.CheckInDate, &booking.CheckOutDate,
		&booking.Status, &booking.TotalPrice, &rooms, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get booking by id")
	}

	if booking.ID, err = uuid.FromBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse booking UUID")
	}
	if booking.CustomerID, err = uuid.FromBytes(customerBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse customer UUID")
	}
	if err := json.Unmarshal(rooms, &booking.Rooms); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal rooms")
	}

	return &booking, nil
}

// Update persists the booking's mutable fields
func (r *MySQLBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := booking.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal booking UUID")
	}

	query := `UPDATE bookings
			  SET status = ?, total_price = ?, updated_at = NOW()
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, booking.Status, booking.TotalPrice, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update booking")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}
