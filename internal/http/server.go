// Package http provides the ops HTTP server: health probes plus read-only
// booking and saga inspection endpoints for support tooling.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/hotel-booking-saga/internal/booking/usecase"
	"github.com/allisson/hotel-booking-saga/internal/config"
	"github.com/allisson/hotel-booking-saga/internal/httputil"
)

// Server represents the ops HTTP server.
type Server struct {
	server   *http.Server
	router   *gin.Engine
	db       *sql.DB
	bookings usecase.UseCase
	logger   *slog.Logger
}

// NewServer creates a new ops HTTP server with its routes and middleware configured.
func NewServer(
	cfg *config.Config,
	db *sql.DB,
	bookings usecase.UseCase,
	logger *slog.Logger,
) *Server {
	s := &Server{
		db:       db,
		bookings: bookings,
		logger:   logger,
	}
	s.router = s.setupRouter(cfg)
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRouter builds the gin engine with middleware and routes.
func (s *Server) setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	v1.GET("/bookings/:booking_id", s.getBookingHandler)
	v1.GET("/sagas/:saga_id", s.getSagaHandler)

	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the ops HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the ops HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can reach its dependencies.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"database": "ok"}
	ready := true

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// getBookingHandler retrieves a booking by its id.
// GET /v1/bookings/:booking_id
func (s *Server) getBookingHandler(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid booking id: %w", err), s.logger)
		return
	}

	booking, err := s.bookings.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}

	c.JSON(http.StatusOK, mapBookingToResponse(booking))
}

// getSagaHandler retrieves a booking plus every outbox row of its saga run.
// GET /v1/sagas/:saga_id
func (s *Server) getSagaHandler(c *gin.Context) {
	sagaID, err := uuid.Parse(c.Param("saga_id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid saga id: %w", err), s.logger)
		return
	}

	view, err := s.bookings.GetSaga(c.Request.Context(), sagaID)
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}

	c.JSON(http.StatusOK, mapSagaToResponse(view))
}
