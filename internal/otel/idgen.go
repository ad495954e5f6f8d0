package otel

import (
	"context"
	"crypto/rand"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type traceIDKey struct{}

// ContextWithTraceID returns a context whose root spans use traceID.
// A zero traceID leaves generation random.
func ContextWithTraceID(ctx context.Context, traceID trace.TraceID) context.Context {
	if !traceID.IsValid() {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID attached with ContextWithTraceID.
func TraceIDFromContext(ctx context.Context) (trace.TraceID, bool) {
	traceID, ok := ctx.Value(traceIDKey{}).(trace.TraceID)
	return traceID, ok
}

// IDGenerator generates random span IDs and random trace IDs unless the
// context carries a trace ID.
type IDGenerator struct{}

var _ sdktrace.IDGenerator = IDGenerator{}

// NewIDGenerator creates an IDGenerator.
func NewIDGenerator() IDGenerator {
	return IDGenerator{}
}

// NewIDs returns IDs for a new root span.
func (g IDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	traceID, ok := TraceIDFromContext(ctx)
	if !ok {
		traceID = randomTraceID()
	}
	return traceID, g.NewSpanID(ctx, traceID)
}

// NewSpanID returns a span ID for a new child span of traceID.
func (IDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	for {
		var id trace.SpanID
		_, _ = rand.Read(id[:])
		if id.IsValid() {
			return id
		}
	}
}

func randomTraceID() trace.TraceID {
	for {
		var id trace.TraceID
		_, _ = rand.Read(id[:])
		if id.IsValid() {
			return id
		}
	}
}
