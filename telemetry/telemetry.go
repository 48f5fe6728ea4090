// Package telemetry provides the logging, metrics, and tracing interfaces
// used throughout the pipeline. Implementations typically delegate to Clue
// and OpenTelemetry, but the interfaces are intentionally small so tests can
// supply lightweight stubs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used by every pipeline component.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers for runtime
// instrumentation (attempt counts, retry levels, confidence scores, token
// usage, queue depth).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so pipeline code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// ModelTelemetry captures observability metadata collected during a single
// model invocation (planning, code generation, retry, review).
type ModelTelemetry struct {
	// DurationMs is the wall-clock latency of the call.
	DurationMs int64
	// Model identifies the concrete model used (e.g. "claude-sonnet-4-5").
	Model string
	// Provider identifies the adapter that served the call (e.g. "anthropic").
	Provider string
	// PromptTokens / CompletionTokens mirror TokenUsage for the call.
	PromptTokens     int
	CompletionTokens int
}
