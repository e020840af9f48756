// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/hotel-booking-saga/cmd/app/commands"
	"github.com/allisson/hotel-booking-saga/internal/app"
	"github.com/allisson/hotel-booking-saga/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Hotel booking saga coordinator",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "Run the saga worker: response consumers, outbox sweeper and HTTP servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "create-booking",
				Usage: "Create a booking and start its saga with a deposit request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "customer-id",
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "Customer ID (UUID)",
					},
					&cli.StringFlag{
						Name:     "check-in",
						Required: true,
						Usage:    "Check-in date (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:     "check-out",
						Required: true,
						Usage:    "Check-out date (YYYY-MM-DD)",
					},
					&cli.StringSliceFlag{
						Name:     "room",
						Aliases:  []string{"r"},
						Required: true,
						Usage:    "Room spec number:rate_per_night (repeatable, rate in minor units)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.CreateBookingCommand(
						ctx,
						cmd.String("customer-id"),
						cmd.String("check-in"),
						cmd.String("check-out"),
						cmd.StringSlice("room"),
					)
				},
			},
			{
				Name:  "check-in",
				Usage: "Record the guest's arrival on a confirmed booking",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "booking-id",
						Aliases:  []string{"b"},
						Required: true,
						Usage:    "Booking ID (UUID)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.CheckInCommand(ctx, cmd.String("booking-id"))
				},
			},
			{
				Name:  "check-out",
				Usage: "Request check-out: publishes the final payment request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "booking-id",
						Aliases:  []string{"b"},
						Required: true,
						Usage:    "Booking ID (UUID)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.CheckOutCommand(ctx, cmd.String("booking-id"))
				},
			},
			{
				Name:  "sweep",
				Usage: "Run a single outbox sweep over every channel and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSweep(ctx)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
