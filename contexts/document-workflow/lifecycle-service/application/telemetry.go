package application

import (
	"context"
	"time"

	"vihadmin/contexts/document-workflow/lifecycle-service/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "vihadmin/document-workflow/lifecycle-service"

// StartSpan opens a span on the globally registered tracer provider. Without a
// configured provider the span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func ResolveMetrics(metrics ports.LifecycleMetrics) ports.LifecycleMetrics {
	if metrics == nil {
		return nopMetrics{}
	}
	return metrics
}

type nopMetrics struct{}

func (nopMetrics) SequenceAllocated(string)                  {}
func (nopMetrics) AllocationFailed(string)                   {}
func (nopMetrics) TransitionAccepted(string, string, string) {}
func (nopMetrics) TransitionRejected(string, string)         {}
func (nopMetrics) ObserveOperation(string, time.Duration)    {}
func (nopMetrics) OutboxRelayed(string, string)              {}
