package platform

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// traceIDFromContext extracts the active OpenTelemetry trace id, if any,
// so log lines can be correlated with spans without the logger importing
// a tracer provider directly.
func traceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
