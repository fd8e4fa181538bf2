package bus

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// spanTracker creates one span per Send call, parenting each message in
// a correlation chain under the span of the chain's previous message so
// a PR's whole feedback loop renders as a single trace.
type spanTracker struct {
	tracer trace.Tracer

	mu      sync.Mutex
	parents map[string]trace.SpanContext
}

func newSpanTracker() *spanTracker {
	return &spanTracker{
		tracer:  noop.NewTracerProvider().Tracer("noop"),
		parents: make(map[string]trace.SpanContext),
	}
}

// SetTracer installs tracer as the span source for subsequent Send calls.
func (b *Bus) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		return
	}
	b.tracing.mu.Lock()
	defer b.tracing.mu.Unlock()
	b.tracing.tracer = tracer
}

// startSpan begins a span for msg, parented by any earlier span recorded
// for msg.CorrelationID, and remembers this span as the new parent for
// that chain.
func (t *spanTracker) startSpan(msg domain.AgentMessage) (context.Context, trace.Span) {
	ctx := context.Background()

	t.mu.Lock()
	if parent, ok := t.parents[msg.CorrelationID]; ok && parent.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
	}
	t.mu.Unlock()

	ctx, span := t.tracer.Start(ctx, "bus.send",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("message.type", string(msg.Type)),
			attribute.String("message.from", msg.From),
			attribute.String("message.to", msg.To),
			attribute.String("message.correlation_id", msg.CorrelationID),
		),
	)

	t.mu.Lock()
	t.parents[msg.CorrelationID] = span.SpanContext()
	t.mu.Unlock()

	return ctx, span
}

func endSpan(span trace.Span, result SendResult) {
	if len(result.HandlerErrors) > 0 {
		span.SetStatus(codes.Error, result.HandlerErrors[0].Error())
		for _, err := range result.HandlerErrors {
			span.RecordError(err)
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Bool("message.delivered", result.Delivered))
	span.End()
}
