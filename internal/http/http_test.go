package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
	"github.com/allisson/hotel-booking-saga/internal/booking/usecase"
	"github.com/allisson/hotel-booking-saga/internal/config"
	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
	"github.com/allisson/hotel-booking-saga/internal/metrics"
	outboxDomain "github.com/allisson/hotel-booking-saga/internal/outbox/domain"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockBookingUseCase is a mock implementation of usecase.UseCase.
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input usecase.CreateBookingInput) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CheckInBooking(ctx context.Context, bookingID uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CheckOutBooking(ctx context.Context, bookingID uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, bookingID uuid.UUID) (*bookingDomain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetSaga(ctx context.Context, sagaID uuid.UUID) (*usecase.SagaView, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.SagaView), args.Error(1)
}

// testConfig returns a config suitable for router tests.
func testConfig() *config.Config {
	return &config.Config{
		ServerHost:       "localhost",
		ServerPort:       8080,
		RateLimitEnabled: false,
		CORSEnabled:      false,
	}
}

// createTestServer creates a test server with a discarding logger and a mock use case.
func createTestServer(bookings usecase.UseCase) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(testConfig(), nil, bookings, logger)
}

func testBooking() *bookingDomain.Booking {
	checkIn := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	booking := bookingDomain.NewBooking(
		uuid.Must(uuid.NewV7()),
		checkIn,
		checkIn.AddDate(0, 0, 2),
		[]bookingDomain.Room{{Number: "101", RatePerNight: 15000}},
	)
	booking.Status = bookingDomain.BookingStatusConfirmed
	return booking
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(&MockBookingUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestReadyEndpoint_NotReady_NilDB(t *testing.T) {
	server := createTestServer(&MockBookingUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "not_ready", response["status"])

	components, ok := response["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "error", components["database"])
}

func TestGetBookingEndpoint_Success(t *testing.T) {
	bookings := &MockBookingUseCase{}
	server := createTestServer(bookings)

	booking := testBooking()
	bookings.On("GetBooking", mock.Anything, booking.ID).Return(booking, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/"+booking.ID.String(), nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, booking.ID.String(), response["id"])
	assert.Equal(t, string(bookingDomain.BookingStatusConfirmed), response["status"])
	assert.Equal(t, float64(30000), response["total_price"])

	bookings.AssertExpectations(t)
}

func TestGetBookingEndpoint_InvalidID(t *testing.T) {
	bookings := &MockBookingUseCase{}
	server := createTestServer(bookings)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/not-a-uuid", nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	bookings.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
}

func TestGetBookingEndpoint_NotFound(t *testing.T) {
	bookings := &MockBookingUseCase{}
	server := createTestServer(bookings)

	unknownID := uuid.Must(uuid.NewV7())
	bookings.On("GetBooking", mock.Anything, unknownID).
		Return(nil, apperrors.Wrap(apperrors.ErrNotFound, "booking not found"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/"+unknownID.String(), nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "not_found", response["error"])
}

func TestGetSagaEndpoint_Success(t *testing.T) {
	bookings := &MockBookingUseCase{}
	server := createTestServer(bookings)

	booking := testBooking()
	row := outboxDomain.NewOutboxMessage(
		booking.ID,
		booking.ID,
		outboxDomain.MessageTypeDepositRequest,
		[]byte(`{"customer_id":"`+booking.CustomerID.String()+`"}`),
		bookingDomain.BookingStatusPending,
		outboxDomain.SagaStatusStarted,
	)
	view := &usecase.SagaView{
		Booking: booking,
		Messages: map[outboxDomain.Channel][]*outboxDomain.OutboxMessage{
			outboxDomain.ChannelPayment:      {row},
			outboxDomain.ChannelRoom:         {},
			outboxDomain.ChannelNotification: {},
		},
	}
	bookings.On("GetSaga", mock.Anything, booking.ID).Return(view, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/sagas/"+booking.ID.String(), nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Booking  map[string]interface{}              `json:"booking"`
		Messages map[string][]map[string]interface{} `json:"messages"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, booking.ID.String(), response.Booking["id"])

	require.Len(t, response.Messages["payment"], 1)
	paymentRow := response.Messages["payment"][0]
	assert.Equal(t, string(outboxDomain.MessageTypeDepositRequest), paymentRow["type"])
	assert.Equal(t, string(outboxDomain.SagaStatusStarted), paymentRow["saga_status"])

	// Payload renders as a JSON object, not base64 bytes
	payload, ok := paymentRow["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, booking.CustomerID.String(), payload["customer_id"])
}

func TestGetSagaEndpoint_NotFound(t *testing.T) {
	bookings := &MockBookingUseCase{}
	server := createTestServer(bookings)

	unknownID := uuid.Must(uuid.NewV7())
	bookings.On("GetSaga", mock.Anything, unknownID).
		Return(nil, apperrors.Wrap(apperrors.ErrNotFound, "booking not found"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/sagas/"+unknownID.String(), nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDHeaderPresent(t *testing.T) {
	server := createTestServer(&MockBookingUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.GetHandler().ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID, "X-Request-Id header should be present")

	parsedUUID, err := uuid.Parse(requestID)
	require.NoError(t, err, "X-Request-Id should be a valid UUID")
	assert.NotEqual(t, uuid.Nil, parsedUUID)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)

	// Should not panic - Recovery middleware catches it
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNotFoundEndpoint(t *testing.T) {
	server := createTestServer(&MockBookingUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(RateLimitMiddleware(1, 1, logger))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	// First request fits in the burst
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second immediate request from the same IP is rejected
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Disabled", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(false, "https://example.com", logger))
	})

	t.Run("EnabledWithoutOrigins", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(true, "", logger))
	})

	t.Run("EnabledWithOrigins", func(t *testing.T) {
		assert.NotNil(t, createCORSMiddleware(true, "https://example.com, https://other.example.com", logger))
	})
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"},
		parseOrigins(" https://a.example.com , https://b.example.com "))
	assert.Empty(t, parseOrigins(" , ,"))
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := createTestServer(&MockBookingUseCase{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err := server.Shutdown(shutdownCtx)
	assert.NoError(t, err)

	select {
	case err := <-errChan:
		t.Fatalf("server startup failed: %v", err)
	default:
	}
}

func TestMetricsServer_Endpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, logger, provider)
	require.NotNil(t, metricsServer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsServer.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
