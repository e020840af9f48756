package saga

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/service"
	"github.com/allisson/hotel-booking-saga/internal/metrics"
	"github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	"github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockBookingRepository is a mock implementation of BookingRepository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *bookingDomain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

// MockOutboxRepository is a mock implementation of usecase.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
	channel domain.Channel
}

func (m *MockOutboxRepository) Channel() domain.Channel {
	return m.channel
}

func (m *MockOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepository) FindBySagaIDAndSagaStatus(
	ctx context.Context,
	sagaID uuid.UUID,
	statuses ...domain.SagaStatus,
) ([]*domain.OutboxMessage, error) {
	callArgs := []any{ctx, sagaID}
	for _, status := range statuses {
		callArgs = append(callArgs, status)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) FindBySagaID(
	ctx context.Context,
	sagaID uuid.UUID,
) ([]*domain.OutboxMessage, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) FindUnpublished(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxMessage, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) Update(ctx context.Context, msg *domain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockPublisher is a mock implementation of usecase.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Send(
	ctx context.Context,
	msg *domain.OutboxMessage,
	onResult usecase.PublishCallback,
) error {
	args := m.Called(ctx, msg, onResult)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return onResult(ctx, msg, domain.OutboxStatusCompleted)
}

// fixture bundles the dependencies every step test needs.
type fixture struct {
	tx            *MockTxManager
	bookings      *MockBookingRepository
	payments      *MockOutboxRepository
	rooms         *MockOutboxRepository
	notifications *MockOutboxRepository
	publisher     *MockPublisher
	service       *service.BookingService
	logger        *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		tx:            &MockTxManager{},
		bookings:      &MockBookingRepository{},
		payments:      &MockOutboxRepository{channel: domain.ChannelPayment},
		rooms:         &MockOutboxRepository{channel: domain.ChannelRoom},
		notifications: &MockOutboxRepository{channel: domain.ChannelNotification},
		publisher:     &MockPublisher{},
		service:       service.NewBookingService(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *fixture) depositStep() *DepositStep {
	return NewDepositStep(
		f.tx,
		f.bookings,
		f.service,
		usecase.NewHelper(f.payments, f.logger),
		usecase.NewHelper(f.rooms, f.logger),
		f.publisher,
		f.logger,
		metrics.NewNoOpSagaMetrics(),
	)
}

func (f *fixture) roomStep() *RoomReservationStep {
	return NewRoomReservationStep(
		f.tx,
		f.bookings,
		f.service,
		usecase.NewHelper(f.rooms, f.logger),
		usecase.NewHelper(f.notifications, f.logger),
		f.publisher,
		f.logger,
		metrics.NewNoOpSagaMetrics(),
	)
}

func (f *fixture) paymentStep() *PaymentStep {
	return NewPaymentStep(
		f.tx,
		f.bookings,
		f.service,
		usecase.NewHelper(f.payments, f.logger),
		usecase.NewHelper(f.notifications, f.logger),
		f.publisher,
		f.logger,
		metrics.NewNoOpSagaMetrics(),
	)
}

func newBooking(t *testing.T, status bookingDomain.BookingStatus) *bookingDomain.Booking {
	t.Helper()
	checkIn := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	booking := bookingDomain.NewBooking(
		uuid.Must(uuid.NewV7()),
		checkIn,
		checkIn.AddDate(0, 0, 2),
		[]bookingDomain.Room{{Number: "101", RatePerNight: 15000}},
	)
	booking.Status = status
	return booking
}

func newOutboxRow(
	booking *bookingDomain.Booking,
	messageType domain.MessageType,
	snapshot bookingDomain.BookingStatus,
	sagaStatus domain.SagaStatus,
) *domain.OutboxMessage {
	msg := domain.NewOutboxMessage(
		uuid.Must(uuid.NewV7()),
		booking.ID,
		messageType,
		[]byte(`{}`),
		snapshot,
		sagaStatus,
	)
	msg.OutboxStatus = domain.OutboxStatusCompleted
	return msg
}
