package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/hotel-booking-saga/internal/database"
)

// SweeperConfig holds sweeper configuration
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// SweepTarget pairs one channel's helper with the publisher for its topic.
type SweepTarget struct {
	Helper    *Helper
	Publisher Publisher
}

// Sweeper periodically re-publishes messages that were committed to the outbox
// but never acknowledged by the message channel. It is the crash-recovery half
// of commit-then-publish: a process that dies between the local commit and the
// publish leaves the row in STARTED, and the next sweep re-sends it.
type Sweeper struct {
	config  SweeperConfig
	tx      database.TxManager
	targets []SweepTarget
	logger  *slog.Logger
}

// NewSweeper creates a new Sweeper over the given channels.
func NewSweeper(
	config SweeperConfig,
	tx database.TxManager,
	targets []SweepTarget,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		config:  config,
		tx:      tx,
		targets: targets,
		logger:  logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("starting outbox sweeper",
		slog.Duration("interval", s.config.Interval),
		slog.Int("batch_size", s.config.BatchSize),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping outbox sweeper")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep re-publishes unacknowledged messages across all channels. Each channel
// is swept in its own transaction so the SKIP LOCKED row locks are held until
// the delivery statuses are recorded, keeping concurrent sweepers from
// re-sending the same rows.
func (s *Sweeper) Sweep(ctx context.Context) error {
	for _, target := range s.targets {
		if err := s.sweepChannel(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) sweepChannel(ctx context.Context, target SweepTarget) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		messages, err := target.Helper.repo.FindUnpublished(ctx, s.config.BatchSize)
		if err != nil {
			return err
		}

		if len(messages) == 0 {
			return nil
		}

		s.logger.Info("re-publishing unacknowledged outbox messages",
			slog.String("channel", string(target.Helper.Channel())),
			slog.Int("count", len(messages)),
		)

		callback := target.Helper.DeliveryCallback()
		for _, msg := range messages {
			if err := target.Publisher.Send(ctx, msg, callback); err != nil {
				return err
			}
		}

		return nil
	})
}
