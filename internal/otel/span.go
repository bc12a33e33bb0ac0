// Package otel provides tracing helpers shared by the sync stages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on sync spans.
const (
	AttrRelation    = attribute.Key("sync.relation")
	AttrIndex       = attribute.Key("search.index")
	AttrBatchSize   = attribute.Key("sync.batch_size")
	AttrResultCount = attribute.Key("result.count")
	AttrWatermark   = attribute.Key("sync.watermark")
)

// TracerName is the instrumentation scope used by the sync engine.
const TracerName = "github.com/stacklok/pgsearch-sync"

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic so connection strings and queries
// only end up in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// WithSpan runs fn inside a child span named name and records its error.
func WithSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	fn func(ctx context.Context) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := StartSpan(ctx, tracer, name, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	RecordError(span, err)
	return err
}
