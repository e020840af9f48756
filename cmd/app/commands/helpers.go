// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/hotel-booking-saga/internal/app"
	bookingDomain "github.com/allisson/hotel-booking-saga/internal/booking/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// parseRoom parses a "number:rate" room spec, with the rate in minor currency
// units (e.g. "101:15000" is room 101 at 150.00 per night).
func parseRoom(spec string) (bookingDomain.Room, error) {
	number, rateStr, found := strings.Cut(spec, ":")
	if !found || number == "" {
		return bookingDomain.Room{}, fmt.Errorf("invalid room spec %q (expected number:rate_per_night)", spec)
	}

	rate, err := strconv.ParseInt(rateStr, 10, 64)
	if err != nil {
		return bookingDomain.Room{}, fmt.Errorf("invalid rate in room spec %q: %w", spec, err)
	}

	return bookingDomain.Room{Number: number, RatePerNight: rate}, nil
}

// parseRooms parses a list of "number:rate" room specs.
func parseRooms(specs []string) ([]bookingDomain.Room, error) {
	rooms := make([]bookingDomain.Room, 0, len(specs))
	for _, spec := range specs {
		room, err := parseRoom(spec)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
