package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/hotel-booking-saga/internal/app"
	"github.com/allisson/hotel-booking-saga/internal/config"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 30 * time.Second

// RunWorker runs the saga coordination worker: both response consumers, the
// outbox sweeper, the ops HTTP server and the metrics server. Blocks until
// receiving SIGINT/SIGTERM or encountering a fatal error.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	roomConsumer, err := container.RoomResponseConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize room response consumer: %w", err)
	}
	paymentConsumer, err := container.PaymentResponseConsumer()
	if err != nil {
		return fmt.Errorf("failed to initialize payment response consumer: %w", err)
	}
	sweeper, err := container.Sweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize sweeper: %w", err)
	}
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(roomConsumer.Start(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(paymentConsumer.Start(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(sweeper.Start(gctx))
	})

	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if metricsServer != nil {
		g.Go(func() error {
			return metricsServer.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}

// RunSweep performs a single sweep over every outbox channel and exits.
// Useful for draining a backlog without starting the full worker.
func RunSweep(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	sweeper, err := container.Sweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize sweeper: %w", err)
	}

	if err := sweeper.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	logger.Info("sweep completed")
	return nil
}

// ignoreCanceled maps context cancellation to a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
