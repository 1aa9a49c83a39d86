package observability

import (
	"context"
	"omega/internal/models"
	"omega/internal/storage"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	outcomes metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("omega/storage")
	meter := otel.Meter("omega/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"plan.quota.consumptions",
		metric.WithDescription("Quota consumption attempts by resulting plan status"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
		outcomes: outcomes,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) GetPlan(ctx context.Context, userID string) (*models.UserPlan, error) {
	ctx, span := s.startSpan(ctx, "GetPlan", attribute.String("user_id", userID))
	start := time.Now()
	result, err := s.inner.GetPlan(ctx, userID)
	s.record(ctx, span, "GetPlan", start, err)
	return result, err
}

func (s *InstrumentedStorage) SavePlan(ctx context.Context, plan *models.UserPlan) error {
	ctx, span := s.startSpan(ctx, "SavePlan",
		attribute.String("user_id", plan.UserID),
		attribute.String("plan.label", plan.Label),
	)
	start := time.Now()
	err := s.inner.SavePlan(ctx, plan)
	s.record(ctx, span, "SavePlan", start, err)
	return err
}

func (s *InstrumentedStorage) ConsumeQuota(ctx context.Context, userID string, now time.Time) (models.PlanStatus, *models.UserPlan, error) {
	ctx, span := s.startSpan(ctx, "ConsumeQuota", attribute.String("user_id", userID))
	start := time.Now()
	status, plan, err := s.inner.ConsumeQuota(ctx, userID, now)
	if err == nil {
		span.SetAttributes(attribute.String("plan.status", string(status)))
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	}
	s.record(ctx, span, "ConsumeQuota", start, err)
	return status, plan, err
}

func (s *InstrumentedStorage) ListPlans(ctx context.Context) ([]*models.UserPlan, error) {
	ctx, span := s.startSpan(ctx, "ListPlans")
	start := time.Now()
	result, err := s.inner.ListPlans(ctx)
	s.record(ctx, span, "ListPlans", start, err)
	return result, err
}

func (s *InstrumentedStorage) CountPlans(ctx context.Context) (int, error) {
	ctx, span := s.startSpan(ctx, "CountPlans")
	start := time.Now()
	result, err := s.inner.CountPlans(ctx)
	s.record(ctx, span, "CountPlans", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}

// Ensure InstrumentedStorage implements storage.Storage
var _ storage.Storage = (*InstrumentedStorage)(nil)
