// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	bookingRepository "github.com/allisson/hotel-booking-saga/internal/booking/repository"
	"github.com/allisson/hotel-booking-saga/internal/booking/service"
	bookingUsecase "github.com/allisson/hotel-booking-saga/internal/booking/usecase"
	"github.com/allisson/hotel-booking-saga/internal/config"
	"github.com/allisson/hotel-booking-saga/internal/database"
	"github.com/allisson/hotel-booking-saga/internal/http"
	"github.com/allisson/hotel-booking-saga/internal/messaging"
	"github.com/allisson/hotel-booking-saga/internal/metrics"
	outboxDomain "github.com/allisson/hotel-booking-saga/internal/outbox/domain"
	outboxRepository "github.com/allisson/hotel-booking-saga/internal/outbox/repository"
	outboxUsecase "github.com/allisson/hotel-booking-saga/internal/outbox/usecase"
	"github.com/allisson/hotel-booking-saga/internal/saga"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Repositories and helpers
	bookingRepo        bookingUsecase.BookingRepository
	paymentHelper      *outboxUsecase.Helper
	roomHelper         *outboxUsecase.Helper
	notificationHelper *outboxUsecase.Helper

	// Domain services
	bookingService *service.BookingService

	// Metrics
	metricsProvider *metrics.Provider
	sagaMetrics     metrics.SagaMetrics

	// Messaging
	roomPublisher         *messaging.KafkaPublisher
	paymentPublisher      *messaging.KafkaPublisher
	notificationPublisher *messaging.KafkaPublisher
	roomConsumer          *messaging.KafkaConsumer
	paymentConsumer       *messaging.KafkaConsumer

	// Saga steps
	depositStep *saga.DepositStep
	roomStep    *saga.RoomReservationStep
	paymentStep *saga.PaymentStep

	// Use cases and workers
	bookingUseCase bookingUsecase.UseCase
	sweeper        *outboxUsecase.Sweeper

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	bookingRepoInit           sync.Once
	paymentHelperInit         sync.Once
	roomHelperInit            sync.Once
	notificationHelperInit    sync.Once
	bookingServiceInit        sync.Once
	metricsProviderInit       sync.Once
	sagaMetricsInit           sync.Once
	roomPublisherInit         sync.Once
	paymentPublisherInit      sync.Once
	notificationPublisherInit sync.Once
	roomConsumerInit          sync.Once
	paymentConsumerInit       sync.Once
	depositStepInit           sync.Once
	roomStepInit              sync.Once
	paymentStepInit           sync.Once
	bookingUseCaseInit        sync.Once
	sweeperInit               sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if err, exists := c.initErrors["db"]; exists {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if err, exists := c.initErrors["txManager"]; exists {
		return nil, err
	}
	return c.txManager, nil
}

// BookingRepository returns the booking repository instance.
func (c *Container) BookingRepository() (bookingUsecase.BookingRepository, error) {
	c.bookingRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["bookingRepo"] = fmt.Errorf("failed to get database for booking repository: %w", err)
			return
		}

		// Select the appropriate repository based on the database driver
		switch c.config.DBDriver {
		case "mysql":
			c.bookingRepo = bookingRepository.NewMySQLBookingRepository(db)
		case "postgres":
			c.bookingRepo = bookingRepository.NewPostgreSQLBookingRepository(db)
		default:
			c.initErrors["bookingRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if err, exists := c.initErrors["bookingRepo"]; exists {
		return nil, err
	}
	return c.bookingRepo, nil
}

// outboxHelper builds the outbox helper for one channel.
func (c *Container) outboxHelper(channel outboxDomain.Channel) (*outboxUsecase.Helper, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for %s outbox repository: %w", channel, err)
	}

	var repo outboxUsecase.OutboxRepository
	switch c.config.DBDriver {
	case "mysql":
		repo = outboxRepository.NewMySQLOutboxRepository(db, channel)
	case "postgres":
		repo = outboxRepository.NewPostgreSQLOutboxRepository(db, channel)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	return outboxUsecase.NewHelper(repo, c.Logger()), nil
}

// PaymentOutboxHelper returns the payment channel outbox helper.
func (c *Container) PaymentOutboxHelper() (*outboxUsecase.Helper, error) {
	c.paymentHelperInit.Do(func() {
		helper, err := c.outboxHelper(outboxDomain.ChannelPayment)
		if err != nil {
			c.initErrors["paymentHelper"] = err
			return
		}
		c.paymentHelper = helper
	})
	if err, exists := c.initErrors["paymentHelper"]; exists {
		return nil, err
	}
	return c.paymentHelper, nil
}

// RoomOutboxHelper returns the room channel outbox helper.
func (c *Container) RoomOutboxHelper() (*outboxUsecase.Helper, error) {
	c.roomHelperInit.Do(func() {
		helper, err := c.outboxHelper(outboxDomain.ChannelRoom)
		if err != nil {
			c.initErrors["roomHelper"] = err
			return
		}
		c.roomHelper = helper
	})
	if err, exists := c.initErrors["roomHelper"]; exists {
		return nil, err
	}
	return c.roomHelper, nil
}

// NotificationOutboxHelper returns the notification channel outbox helper.
func (c *Container) NotificationOutboxHelper() (*outboxUsecase.Helper, error) {
	c.notificationHelperInit.Do(func() {
		helper, err := c.outboxHelper(outboxDomain.ChannelNotification)
		if err != nil {
			c.initErrors["notificationHelper"] = err
			return
		}
		c.notificationHelper = helper
	})
	if err, exists := c.initErrors["notificationHelper"]; exists {
		return nil, err
	}
	return c.notificationHelper, nil
}

// BookingService returns the booking domain service.
func (c *Container) BookingService() *service.BookingService {
	c.bookingServiceInit.Do(func() {
		c.bookingService = service.NewBookingService()
	})
	return c.bookingService
}

// MetricsProvider returns the metrics provider instance.
// Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if err, exists := c.initErrors["metricsProvider"]; exists {
		return nil, err
	}
	return c.metricsProvider, nil
}

// SagaMetrics returns the saga metrics recorder.
// Returns a no-op implementation when metrics are disabled.
func (c *Container) SagaMetrics() (metrics.SagaMetrics, error) {
	c.sagaMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["sagaMetrics"] = err
			return
		}
		if provider == nil {
			c.sagaMetrics = metrics.NewNoOpSagaMetrics()
			return
		}
		sagaMetrics, err := metrics.NewSagaMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["sagaMetrics"] = fmt.Errorf("failed to create saga metrics: %w", err)
			return
		}
		c.sagaMetrics = sagaMetrics
	})
	if err, exists := c.initErrors["sagaMetrics"]; exists {
		return nil, err
	}
	return c.sagaMetrics, nil
}

// RoomPublisher returns the publisher for the room reservation request topic.
func (c *Container) RoomPublisher() *messaging.KafkaPublisher {
	c.roomPublisherInit.Do(func() {
		c.roomPublisher = messaging.NewKafkaPublisher(
			c.config.KafkaBrokerList(),
			c.config.TopicRoomReserveRequest,
			c.Logger(),
		)
	})
	return c.roomPublisher
}

// PaymentPublisher returns the publisher for the payment request topic.
func (c *Container) PaymentPublisher() *messaging.KafkaPublisher {
	c.paymentPublisherInit.Do(func() {
		c.paymentPublisher = messaging.NewKafkaPublisher(
			c.config.KafkaBrokerList(),
			c.config.TopicPaymentRequest,
			c.Logger(),
		)
	})
	return c.paymentPublisher
}

// NotificationPublisher returns the publisher for the notification request topic.
func (c *Container) NotificationPublisher() *messaging.KafkaPublisher {
	c.notificationPublisherInit.Do(func() {
		c.notificationPublisher = messaging.NewKafkaPublisher(
			c.config.KafkaBrokerList(),
			c.config.TopicNotificationRequest,
			c.Logger(),
		)
	})
	return c.notificationPublisher
}

// DepositStep returns the deposit saga step.
func (c *Container) DepositStep() (*saga.DepositStep, error) {
	c.depositStepInit.Do(func() {
		step, err := c.initDepositStep()
		if err != nil {
			c.initErrors["depositStep"] = err
			return
		}
		c.depositStep = step
	})
	if err, exists := c.initErrors["depositStep"]; exists {
		return nil, err
	}
	return c.depositStep, nil
}

// RoomReservationStep returns the room reservation saga step.
func (c *Container) RoomReservationStep() (*saga.RoomReservationStep, error) {
	c.roomStepInit.Do(func() {
		step, err := c.initRoomReservationStep()
		if err != nil {
			c.initErrors["roomStep"] = err
			return
		}
		c.roomStep = step
	})
	if err, exists := c.initErrors["roomStep"]; exists {
		return nil, err
	}
	return c.roomStep, nil
}

// PaymentStep returns the final payment saga step.
func (c *Container) PaymentStep() (*saga.PaymentStep, error) {
	c.paymentStepInit.Do(func() {
		step, err := c.initPaymentStep()
		if err != nil {
			c.initErrors["paymentStep"] = err
			return
		}
		c.paymentStep = step
	})
	if err, exists := c.initErrors["paymentStep"]; exists {
		return nil, err
	}
	return c.paymentStep, nil
}

// RoomResponseConsumer returns the consumer for room reservation responses.
func (c *Container) RoomResponseConsumer() (*messaging.KafkaConsumer, error) {
	c.roomConsumerInit.Do(func() {
		roomStep, err := c.RoomReservationStep()
		if err != nil {
			c.initErrors["roomConsumer"] = fmt.Errorf("failed to get room step for consumer: %w", err)
			return
		}
		c.roomConsumer = messaging.NewKafkaConsumer(
			c.config.KafkaBrokerList(),
			c.config.KafkaConsumerGroup,
			c.config.TopicRoomReserveResponse,
			saga.NewRoomResponseHandler(roomStep, c.Logger()),
			c.Logger(),
		)
	})
	if err, exists := c.initErrors["roomConsumer"]; exists {
		return nil, err
	}
	return c.roomConsumer, nil
}

// PaymentResponseConsumer returns the consumer for payment responses.
func (c *Container) PaymentResponseConsumer() (*messaging.KafkaConsumer, error) {
	c.paymentConsumerInit.Do(func() {
		depositStep, err := c.DepositStep()
		if err != nil {
			c.initErrors["paymentConsumer"] = fmt.Errorf("failed to get deposit step for consumer: %w", err)
			return
		}
		paymentStep, err := c.PaymentStep()
		if err != nil {
			c.initErrors["paymentConsumer"] = fmt.Errorf("failed to get payment step for consumer: %w", err)
			return
		}
		c.paymentConsumer = messaging.NewKafkaConsumer(
			c.config.KafkaBrokerList(),
			c.config.KafkaConsumerGroup,
			c.config.TopicPaymentResponse,
			saga.NewPaymentResponseHandler(depositStep, paymentStep, c.Logger()),
			c.Logger(),
		)
	})
	if err, exists := c.initErrors["paymentConsumer"]; exists {
		return nil, err
	}
	return c.paymentConsumer, nil
}

// BookingUseCase returns the booking use case instance.
func (c *Container) BookingUseCase() (bookingUsecase.UseCase, error) {
	c.bookingUseCaseInit.Do(func() {
		useCase, err := c.initBookingUseCase()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}
		c.bookingUseCase = useCase
	})
	if err, exists := c.initErrors["bookingUseCase"]; exists {
		return nil, err
	}
	return c.bookingUseCase, nil
}

// Sweeper returns the outbox sweeper covering all three channels.
func (c *Container) Sweeper() (*outboxUsecase.Sweeper, error) {
	c.sweeperInit.Do(func() {
		sweeper, err := c.initSweeper()
		if err != nil {
			c.initErrors["sweeper"] = err
			return
		}
		c.sweeper = sweeper
	})
	if err, exists := c.initErrors["sweeper"]; exists {
		return nil, err
	}
	return c.sweeper, nil
}

// HTTPServer returns the ops HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get database for http server: %w", err)
			return
		}
		useCase, err := c.BookingUseCase()
		if err != nil {
			c.initErrors["httpServer"] = fmt.Errorf("failed to get booking use case for http server: %w", err)
			return
		}
		c.httpServer = http.NewServer(c.config, db, useCase, c.Logger())
	})
	if err, exists := c.initErrors["httpServer"]; exists {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if err, exists := c.initErrors["metricsServer"]; exists {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown servers if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Close consumers and publishers if initialized
	if c.roomConsumer != nil {
		if err := c.roomConsumer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("room consumer close: %w", err))
		}
	}
	if c.paymentConsumer != nil {
		if err := c.paymentConsumer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("payment consumer close: %w", err))
		}
	}
	for name, publisher := range map[string]*messaging.KafkaPublisher{
		"room":         c.roomPublisher,
		"payment":      c.paymentPublisher,
		"notification": c.notificationPublisher,
	} {
		if publisher == nil {
			continue
		}
		if err := publisher.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s publisher close: %w", name, err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// stepDeps gathers the dependencies shared by every saga step.
func (c *Container) stepDeps() (database.TxManager, bookingUsecase.BookingRepository, metrics.SagaMetrics, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get tx manager for saga step: %w", err)
	}
	bookingRepo, err := c.BookingRepository()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get booking repository for saga step: %w", err)
	}
	sagaMetrics, err := c.SagaMetrics()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get saga metrics for saga step: %w", err)
	}
	return txManager, bookingRepo, sagaMetrics, nil
}

// initDepositStep creates the deposit saga step with all its dependencies.
func (c *Container) initDepositStep() (*saga.DepositStep, error) {
	txManager, bookingRepo, sagaMetrics, err := c.stepDeps()
	if err != nil {
		return nil, err
	}
	payments, err := c.PaymentOutboxHelper()
	if err != nil {
		return nil, err
	}
	rooms, err := c.RoomOutboxHelper()
	if err != nil {
		return nil, err
	}

	return saga.NewDepositStep(
		txManager,
		bookingRepo,
		c.BookingService(),
		payments,
		rooms,
		c.RoomPublisher(),
		c.Logger(),
		sagaMetrics,
	), nil
}

// initRoomReservationStep creates the room reservation saga step with all its dependencies.
func (c *Container) initRoomReservationStep() (*saga.RoomReservationStep, error) {
	txManager, bookingRepo, sagaMetrics, err := c.stepDeps()
	if err != nil {
		return nil, err
	}
	rooms, err := c.RoomOutboxHelper()
	if err != nil {
		return nil, err
	}
	notifications, err := c.NotificationOutboxHelper()
	if err != nil {
		return nil, err
	}

	return saga.NewRoomReservationStep(
		txManager,
		bookingRepo,
		c.BookingService(),
		rooms,
		notifications,
		c.NotificationPublisher(),
		c.Logger(),
		sagaMetrics,
	), nil
}

// initPaymentStep creates the final payment saga step with all its dependencies.
func (c *Container) initPaymentStep() (*saga.PaymentStep, error) {
	txManager, bookingRepo, sagaMetrics, err := c.stepDeps()
	if err != nil {
		return nil, err
	}
	payments, err := c.PaymentOutboxHelper()
	if err != nil {
		return nil, err
	}
	notifications, err := c.NotificationOutboxHelper()
	if err != nil {
		return nil, err
	}

	return saga.NewPaymentStep(
		txManager,
		bookingRepo,
		c.BookingService(),
		payments,
		notifications,
		c.NotificationPublisher(),
		c.Logger(),
		sagaMetrics,
	), nil
}

// initBookingUseCase creates the booking use case with all its dependencies.
func (c *Container) initBookingUseCase() (bookingUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for booking use case: %w", err)
	}
	bookingRepo, err := c.BookingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking repository for booking use case: %w", err)
	}
	payments, err := c.PaymentOutboxHelper()
	if err != nil {
		return nil, err
	}
	rooms, err := c.RoomOutboxHelper()
	if err != nil {
		return nil, err
	}
	notifications, err := c.NotificationOutboxHelper()
	if err != nil {
		return nil, err
	}

	return bookingUsecase.NewBookingUseCase(
		txManager,
		bookingRepo,
		c.BookingService(),
		payments,
		rooms,
		notifications,
		c.PaymentPublisher(),
		c.Logger(),
	), nil
}

// initSweeper creates the outbox sweeper covering all three channels.
func (c *Container) initSweeper() (*outboxUsecase.Sweeper, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for sweeper: %w", err)
	}
	payments, err := c.PaymentOutboxHelper()
	if err != nil {
		return nil, err
	}
	rooms, err := c.RoomOutboxHelper()
	if err != nil {
		return nil, err
	}
	notifications, err := c.NotificationOutboxHelper()
	if err != nil {
		return nil, err
	}

	targets := []outboxUsecase.SweepTarget{
		{Helper: payments, Publisher: c.PaymentPublisher()},
		{Helper: rooms, Publisher: c.RoomPublisher()},
		{Helper: notifications, Publisher: c.NotificationPublisher()},
	}

	sweeperConfig := outboxUsecase.SweeperConfig{
		Interval:  c.config.SweepInterval,
		BatchSize: c.config.SweepBatchSize,
	}

	return outboxUsecase.NewSweeper(sweeperConfig, txManager, targets, c.Logger()), nil
}
