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

// PostgreSQLBookingRepository handles booking persistence for PostgreSQL
type PostgreSQLBookingRepository struct {
	db *sql.DB
}

// NewPostgreSQLBookingRepository creates a new PostgreSQLBookingRepository
func NewPostgreSQLBookingRepository(db *sql.DB) *PostgreSQLBookingRepository {
	return &PostgreSQLBookingRepository{
		db: db,
	}
}

// Create inserts a new booking
func (r *PostgreSQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	rooms, err := json.Marshal(booking.Rooms)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal rooms")
	}

	query := `INSERT INTO bookings
			  (id, customer_id, check_in_date, check_out_date, status, total_price, rooms, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query,
		booking.ID, booking.CustomerID, booking.CheckInDate, booking.CheckOutDate,
		booking.Status, booking.TotalPrice, rooms,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create booking")
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *PostgreSQLBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	var rooms []byte
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, customer_id, check_in_date, check_out_date, status, total_price, rooms, created_at, updated_at
			  FROM bookings WHERE id = $1`

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&booking.ID, &booking.CustomerID, &booking.CheckInDate, &booking.CheckOutDate,
		&booking.Status, &booking.TotalPrice, &rooms, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get booking by id")
	}

	if err := json.Unmarshal(rooms, &booking.Rooms); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal rooms")
	}

	return &booking, nil
}

// Update persists the booking's mutable fields
func (r *PostgreSQLBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings
			  SET status = $1, total_price = $2, updated_at = NOW()
			  WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, booking.Status, booking.TotalPrice, booking.ID)
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
