package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/cppla/ygportal/services"

type telemetry struct {
	tracer         trace.Tracer
	mutations      metric.Int64Counter
	duration       metric.Float64Histogram
	deleteFailures metric.Int64Counter
}

// operation is one traced post mutation.
type operation struct {
	name  string
	span  trace.Span
	began time.Time
}

// newTelemetry binds to the global providers, which are no-ops unless the
// binary installs real ones.
func newTelemetry() *telemetry {
	meter := otel.Meter(instrumentationName)
	mutations, _ := meter.Int64Counter("posts.mutations",
		metric.WithDescription("Post create, update, status and destroy operations"),
		metric.WithUnit("{operation}"),
	)
	duration, _ := meter.Float64Histogram("posts.mutation.duration",
		metric.WithDescription("Post mutation duration in milliseconds, attachments included"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	deleteFailures, _ := meter.Int64Counter("posts.attachment.delete_failures",
		metric.WithDescription("Attachment deletions that failed and were queued for retry"),
		metric.WithUnit("{blob}"),
	)
	return &telemetry{
		tracer:         otel.Tracer(instrumentationName),
		mutations:      mutations,
		duration:       duration,
		deleteFailures: deleteFailures,
	}
}

func (t *telemetry) start(ctx context.Context, name string) (context.Context, *operation) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("posts.operation", name)))
	return ctx, &operation{name: name, span: span, began: time.Now()}
}

// finish records the outcome of a mutation on its span, counter and histogram.
func (t *telemetry) finish(ctx context.Context, op *operation, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.String("posts.operation", op.name),
		attribute.String("outcome", outcome),
	)
	if t.mutations != nil {
		t.mutations.Add(ctx, 1, attrs)
	}
	if t.duration != nil {
		t.duration.Record(ctx, float64(time.Since(op.began).Microseconds())/1000, attrs)
	}
	op.span.End()
}

func (t *telemetry) deleteFailed(ctx context.Context, reason string) {
	if t.deleteFailures != nil {
		t.deleteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
