package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SagaMetrics defines the interface for recording saga step metrics.
// Implementations track step executions and durations per channel.
type SagaMetrics interface {
	// RecordStep records one saga step execution with its outcome.
	// Channel examples: "room", "payment", "notification"
	// Step examples: "deposit_process", "room_reservation_rollback", "sweep"
	// Status examples: "success", "noop", "error"
	RecordStep(ctx context.Context, channel, step, status string)

	// RecordStepDuration records the duration of a saga step with its outcome.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordStepDuration(ctx context.Context, channel, step string, duration time.Duration, status string)
}

// sagaMetrics implements SagaMetrics using OpenTelemetry metrics.
type sagaMetrics struct {
	stepCounter   metric.Int64Counter
	durationHisto metric.Float64Histogram
}

// NewSagaMetrics creates a new SagaMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "booking_saga").
// Returns error if meters cannot be initialized.
func NewSagaMetrics(meterProvider metric.MeterProvider, namespace string) (SagaMetrics, error) {
	meter := meterProvider.Meter(namespace)

	stepCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_steps_total", namespace),
		metric.WithDescription("Total number of saga step executions"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_step_duration_seconds", namespace),
		metric.WithDescription("Duration of saga step executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &sagaMetrics{
		stepCounter:   stepCounter,
		durationHisto: durationHisto,
	}, nil
}

// RecordStep increments the step counter with channel, step, and status labels.
func (s *sagaMetrics) RecordStep(ctx context.Context, channel, step, status string) {
	s.stepCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("step", step),
			attribute.String("status", status),
		),
	)
}

// RecordStepDuration records the step duration in seconds with channel, step, and status labels.
func (s *sagaMetrics) RecordStepDuration(
	ctx context.Context,
	channel, step string,
	duration time.Duration,
	status string,
) {
	s.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("step", step),
			attribute.String("status", status),
		),
	)
}

// NoOpSagaMetrics is a no-op implementation of SagaMetrics for when metrics are disabled.
type NoOpSagaMetrics struct{}

// NewNoOpSagaMetrics creates a no-op SagaMetrics implementation.
func NewNoOpSagaMetrics() SagaMetrics {
	return &NoOpSagaMetrics{}
}

// RecordStep does nothing when metrics are disabled.
func (n *NoOpSagaMetrics) RecordStep(ctx context.Context, channel, step, status string) {
	// No-op
}

// RecordStepDuration does nothing when metrics are disabled.
func (n *NoOpSagaMetrics) RecordStepDuration(
	ctx context.Context,
	channel, step string,
	duration time.Duration,
	status string,
) {
	// No-op
}
