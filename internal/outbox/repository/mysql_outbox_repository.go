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

// MySQLOutboxRepository handles outbox message persistence for one channel on MySQL
type MySQLOutboxRepository struct {
	db      *sql.DB
	channel domain.Channel
	table   string
}

// NewMySQLOutboxRepository creates a repository bound to the channel's table
func NewMySQLOutboxRepository(db *sql.DB, channel domain.Channel) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{
		db:      db,
		channel: channel,
		table:   tableForChannel(channel),
	}
}

// Channel returns the domain channel this repository serves
func (r *MySQLOutboxRepository) Channel() domain.Channel {
	return r.channel
}

// Create inserts a new outbox message
func (r *MySQLOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, sagaBytes, bookingBytes, err := marshalOutboxUUIDs(msg)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`, r.table, outboxColumns)

	_, err = querier.ExecContext(ctx, query,
		idBytes, sagaBytes, bookingBytes, msg.Type, msg.Payload,
		msg.BookingStatus, msg.SagaStatus, msg.OutboxStatus, msg.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox message")
	}
	return nil
}

// FindBySagaIDAndSagaStatus retrieves the messages for a saga in any of the
// given saga statuses, oldest first.
func (r *MySQLOutboxRepository) FindBySagaIDAndSagaStatus(
	ctx context.Context,
	sagaID uuid.UUID,
	statuses ...domain.SagaStatus,
) ([]*domain.OutboxMessage, error) {
	if len(statuses) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "at least one saga status is required")
	}
	querier := database.GetTx(ctx, r.db)

	sagaBytes, err := sagaID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal saga UUID")
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, sagaBytes)
	for i, status := range statuses {
		placeholders[i] = "?"
		args = append(args, status)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE saga_id = ? AND saga_status IN (%s)
			  ORDER BY created_at ASC`, outboxColumns, r.table, strings.Join(placeholders, ", "))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox messages by saga")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLOutboxMessages(rows)
}

// FindBySagaID retrieves every message for a saga, oldest first
func (r *MySQLOutboxRepository) FindBySagaID(
	ctx context.Context,
	sagaID uuid.UUID,
) ([]*domain.OutboxMessage, error) {
	querier := database.GetTx(ctx, r.db)

	sagaBytes, err := sagaID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal saga UUID")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE saga_id = ?
			  ORDER BY created_at ASC`, outboxColumns, r.table)

	rows, err := querier.QueryContext(ctx, query, sagaBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox messages by saga")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLOutboxMessages(rows)
}

// FindUnpublished retrieves messages whose publish was never acknowledged,
// oldest first. MySQL 8 supports SKIP LOCKED as well.
func (r *MySQLOutboxRepository) FindUnpublished(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxMessage, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM %s
			  WHERE outbox_status = ?
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`, outboxColumns, r.table)

	rows, err := querier.QueryContext(ctx, query, domain.OutboxStatusStarted, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query unpublished outbox messages")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLOutboxMessages(rows)
}

// Update persists the message conditionally on the version it was read at and
// bumps the version. Zero affected rows means ErrSagaConflict.
func (r *MySQLOutboxRepository) Update(ctx context.Context, msg *domain.OutboxMessage) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := msg.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message UUID")
	}

	query := fmt.Sprintf(`UPDATE %s
			  SET booking_status = ?, saga_status = ?, outbox_status = ?, version = version + 1, updated_at = NOW()
			  WHERE id = ? AND version = ?`, r.table)

	result, err := querier.ExecContext(ctx, query,
		msg.BookingStatus, msg.SagaStatus, msg.OutboxStatus, idBytes, msg.Version,
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

// marshalOutboxUUIDs converts the message UUIDs to bytes for MySQL BINARY(16)
func marshalOutboxUUIDs(msg *domain.OutboxMessage) (idBytes, sagaBytes, bookingBytes []byte, err error) {
	if idBytes, err = msg.ID.MarshalBinary(); err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "failed to marshal message UUID")
	}
	if sagaBytes, err = msg.SagaID.MarshalBinary(); err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "failed to marshal saga UUID")
	}
	if bookingBytes, err = msg.BookingID.MarshalBinary(); err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "failed to marshal booking UUID")
	}
	return idBytes, sagaBytes, bookingBytes, nil
}

// scanMySQLOutboxMessages reads all rows into messages, parsing BINARY(16) UUIDs
func scanMySQLOutboxMessages(rows *sql.Rows) ([]*domain.OutboxMessage, error) {
	var messages []*domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var idBytes, sagaBytes, bookingBytes []byte
		var bookingStatus, sagaStatus, outboxStatus string

		err := rows.Scan(
			&idBytes, &sagaBytes, &bookingBytes, &msg.Type, &msg.Payload,
			&bookingStatus, &sagaStatus, &outboxStatus, &msg.Version,
			&msg.CreatedAt, &msg.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox message")
		}

		if msg.ID, err = uuid.FromBytes(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse message UUID")
		}
		if msg.SagaID, err = uuid.FromBytes(sagaBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse saga UUID")
		}
		if msg.BookingID, err = uuid.FromBytes(bookingBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse booking UUID")
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
