// Package repository provides data persistence implementations for outbox messages.
//
// Each domain channel owns its own table (room_outbox, payment_outbox,
// notification_outbox) with an identical layout. Updates are conditional on the
// optimistic version column: a lost race surfaces as ErrSagaConflict instead of
// silently double-applying a status transition.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/database"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// tableForChannel maps a channel to its outbox table. Channels are a closed
// set, so the table name never comes from user input.
func tableForChannel(channel domain.Channel) string {
	return fmt.Sprintf("%s_outbox", channel)
}

const outboxColumns = `id, saga_id, booking_id, type, payload, booking_status, saga_status, outbox_status, version, created_at, updated_at`

// PostgreSQLOutboxRepository handles outbox message persistence for one channel on PostgreSQL
type PostgreSQLOutboxRepository struct {
	db      *sql.DB
	channel domain.Channel
	table   string
}

// NewPostgreSQLOutboxRepository creates a repository bound to the channel's table
func NewPostgreSQLOutboxRepository(db *sql.DB, channel domain.Channel) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{
		db:      db,
		channel: channel,
		table:   tableForChannel(channel),
	}
}

// Channel returns the domain channel this repository serves
func (r *PostgreSQLOutboxRepository) Channel() domain.Channel {
	return r.channel
}

// Create inserts a new outbox message
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`INSERT INTO %s (%s)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`, r.table, outboxColumns)

	_, err := querier.ExecContext(ctx, query,
		msg.ID, msg.SagaID, msg.BookingID, msg.Type, msg.Payload,
		msg.BookingStatus, msg.SagaStatus, msg.OutboxStatus, msg.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox message")
	}
	return nil
}

// FindBySagaIDAndSagaStatus retrieves the messages for a saga in any of the
// given saga statuses, oldest first. The caller decides whether more than one
// match is a duplicate anomaly.
func (r *PostgreSQLOutboxRepository) FindBySagaIDAndSagaStatus(
	ctx context.Context,
	sagaID uuid.UUID,
	statuses ...domain.SagaStatus,
) ([]*domain.OutboxMessage, error) {
	if len(statuses) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "at least one saga status is required")
	}
	querier := database.GetTx(ctx, r.db)

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, sagaID)
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, status)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE saga_id = $1 AND saga_status IN (%s)
			  ORDER BY created_at ASC`, outboxColumns, r.table, strings.Join(placeholders, ", "))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox messages by saga")
	}
	defer rows.Close() //nolint:errcheck

	return scanOutboxMessages(rows)
}

// FindBySagaID retrieves every message for a saga, oldest first
func (r *PostgreSQLOutboxRepository) FindBySagaID(
	ctx context.Context,
	sagaID uuid.UUID,
) ([]*domain.OutboxMessage, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE saga_id = $1
			  ORDER BY created_at ASC`, outboxColumns, r.table)

	rows, err := querier.QueryContext(ctx, query, sagaID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox messages by saga")
	}
	defer rows.Close() //nolint:errcheck

	return scanOutboxMessages(rows)
}

// FindUnpublished retrieves messages whose publish was never acknowledged
// (outbox status still STARTED), oldest first. Rows are locked with SKIP LOCKED
// so concurrent sweepers never re-send the same message.
func (r *PostgreSQLOutboxRepository) FindUnpublished(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxMessage, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE outbox_status = $1
			  ORDER BY created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`, outboxColumns, r.table)

	rows, err := querier.QueryContext(ctx, query, domain.OutboxStatusStarted, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query unpublished outbox messages")
	}
	defer rows.Close() //nolint:errcheck

	return scanOutboxMessages(rows)
}

// Update persists the message conditionally on the version it was read at and
// bumps the version. Zero affected rows means a concurrent delivery of the
// same event already transitioned the row: ErrSagaConflict.
func (r *PostgreSQLOutboxRepository) Update(ctx context.Context, msg *domain.OutboxMessage) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`UPDATE %s
			  SET booking_status = $1, saga_status = $2, outbox_status = $3, version = version + 1, updated_at = NOW()
			  WHERE id = $4 AND version = $5`, r.table)

	result, err := querier.ExecContext(ctx, query,
		msg.BookingStatus, msg.SagaStatus, msg.OutboxStatus, msg.ID, msg.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox message")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return domain.ErrSagaConflict
	}

	msg.Version++
	return nil
}

// scanOutboxMessages reads all rows into messages
func scanOutboxMessages(rows *sql.Rows) ([]*domain.OutboxMessage, error) {
	var messages []*domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var bookingStatus, sagaStatus, outboxStatus string

		err := rows.Scan(
			&msg.ID, &msg.SagaID, &msg.BookingID, &msg.Type, &msg.Payload,
			&bookingStatus, &sagaStatus, &outboxStatus, &msg.Version,
			&msg.CreatedAt, &msg.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox message")
		}

		msg.BookingStatus = bookingDomain.BookingStatus(bookingStatus)
		msg.SagaStatus = domain.SagaStatus(sagaStatus)
		msg.OutboxStatus = domain.OutboxStatus(outboxStatus)
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox messages")
	}

	return messages, nil
}
