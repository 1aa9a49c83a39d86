package observability

import (
	"context"
	"errors"
	"omega/internal/generate"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedGenerator wraps a generate.Generator with a span, a latency
// histogram and a call counter labelled by outcome.
type InstrumentedGenerator struct {
	inner    generate.Generator
	tracer   trace.Tracer
	duration metric.Float64Histogram
	calls    metric.Int64Counter
}

// NewInstrumentedGenerator creates the wrapper using the global providers.
func NewInstrumentedGenerator(inner generate.Generator) (*InstrumentedGenerator, error) {
	meter := otel.Meter("omega/generate")

	duration, err := meter.Float64Histogram(
		"generator.call.duration",
		metric.WithDescription("Duration of model calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	calls, err := meter.Int64Counter(
		"generator.calls",
		metric.WithDescription("Number of model calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedGenerator{
		inner:    inner,
		tracer:   otel.Tracer("omega/generate"),
		duration: duration,
		calls:    calls,
	}, nil
}

// Generate delegates to the wrapped generator.
func (g *InstrumentedGenerator) Generate(ctx context.Context, prompt string) generate.Result {
	ctx, span := g.tracer.Start(ctx, "generate.Generate",
		trace.WithAttributes(attribute.Int("prompt.chars", len(prompt))),
	)
	defer span.End()

	start := time.Now()
	result := g.inner.Generate(ctx, prompt)
	outcome := Outcome(result.Err)

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	g.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	g.calls.Add(ctx, 1, attrs)

	span.SetAttributes(attribute.String("generate.outcome", outcome))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result
}

// Configured delegates to the wrapped generator.
func (g *InstrumentedGenerator) Configured() bool {
	return g.inner.Configured()
}

// Outcome names a generation error for metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, generate.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, generate.ErrTimeout):
		return "timeout"
	case errors.Is(err, generate.ErrEmptyResponse):
		return "empty"
	default:
		return "upstream"
	}
}

// Ensure InstrumentedGenerator implements generate.Generator
var _ generate.Generator = (*InstrumentedGenerator)(nil)
