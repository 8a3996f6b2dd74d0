package generation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatim381/dilemme-du-prisonnier/internal/ratelimit"
	"github.com/hatim381/dilemme-du-prisonnier/internal/telemetry"
)

type throttledBackend struct {
	next    Backend
	limiter ratelimit.Limiter
}

// WithRateLimit makes every call wait for a token keyed by the request's model.
func WithRateLimit(next Backend, limiter ratelimit.Limiter) Backend {
	if limiter == nil {
		return next
	}
	return &throttledBackend{next: next, limiter: limiter}
}

func (t *throttledBackend) Generate(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx, req.Model); err != nil {
		return "", fmt.Errorf("generation: rate limit wait: %w", err)
	}
	return t.next.Generate(ctx, req)
}

type instrumentedBackend struct {
	next    Backend
	name    string
	tracer  trace.Tracer
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// WithTelemetry records a span, an outcome counter and a latency histogram
// for every call. name labels the backend ("ollama", "openai", ...).
func WithTelemetry(next Backend, name string) Backend {
	meter := telemetry.Meter("dilemma/generation")
	calls, _ := meter.Int64Counter("dilemma.backend.calls",
		metric.WithDescription("Generation backend calls by outcome"))
	latency, _ := meter.Float64Histogram("dilemma.backend.latency",
		metric.WithDescription("Generation backend call latency"),
		metric.WithUnit("s"))
	return &instrumentedBackend{
		next:    next,
		name:    name,
		tracer:  telemetry.Tracer("dilemma/generation"),
		calls:   calls,
		latency: latency,
	}
}

func (b *instrumentedBackend) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := b.tracer.Start(ctx, "generation.generate", trace.WithAttributes(
		attribute.String("backend", b.name),
		attribute.String("model", req.Model),
		attribute.Float64("temperature", req.Temperature),
	))
	defer span.End()

	start := time.Now()
	text, err := b.next.Generate(ctx, req)
	elapsed := time.Since(start).Seconds()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", b.name),
		attribute.String("model", req.Model),
		attribute.String("outcome", outcome),
	)
	b.calls.Add(ctx, 1, attrs)
	b.latency.Record(ctx, elapsed, attrs)
	return text, err
}
