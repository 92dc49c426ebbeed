package license

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the OpenTelemetry instruments for license operations.
type Metrics struct {
	validations metric.Int64Counter
	activations metric.Int64Counter
	trials      metric.Int64Counter
	adminOps    metric.Int64Counter
	opDuration  metric.Float64Histogram
}

// NewMetrics registers the license instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("keyserve")

	validations, err := meter.Int64Counter("license_validations_total",
		metric.WithDescription("License validation attempts by result"))
	if err != nil {
		return nil, err
	}
	activations, err := meter.Int64Counter("license_activations_total",
		metric.WithDescription("Machine activation attempts by result"))
	if err != nil {
		return nil, err
	}
	trials, err := meter.Int64Counter("trial_issues_total",
		metric.WithDescription("Trial license issue attempts by result"))
	if err != nil {
		return nil, err
	}
	adminOps, err := meter.Int64Counter("admin_operations_total",
		metric.WithDescription("Admin operations by name and result"))
	if err != nil {
		return nil, err
	}
	opDuration, err := meter.Float64Histogram("license_operation_duration_seconds",
		metric.WithDescription("License operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		validations: validations,
		activations: activations,
		trials:      trials,
		adminOps:    adminOps,
		opDuration:  opDuration,
	}, nil
}

// RecordValidation counts one validation with its outcome label.
func (m *Metrics) RecordValidation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordActivation counts one activation attempt with its outcome label.
func (m *Metrics) RecordActivation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordTrial counts one trial issue attempt with its outcome label.
func (m *Metrics) RecordTrial(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.trials.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordAdminOp counts one admin operation by name and outcome.
func (m *Metrics) RecordAdminOp(ctx context.Context, op, result string) {
	if m == nil {
		return
	}
	m.adminOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result)))
}

// RecordDuration records the latency of a named operation.
func (m *Metrics) RecordDuration(ctx context.Context, op string, start time.Time) {
	if m == nil {
		return
	}
	m.opDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}
