package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// NopLogger discards all log output. Useful in tests.
	NopLogger struct{}

	// NopMetrics discards all metric recordings.
	NopMetrics struct{}

	// NopTracer produces spans that do nothing.
	NopTracer struct{}

	nopSpan struct{}
)

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger { return NopLogger{} }

// NewNopMetrics returns a Metrics recorder that discards everything.
func NewNopMetrics() Metrics { return NopMetrics{} }

// NewNopTracer returns a Tracer whose spans do nothing.
func NewNopTracer() Tracer { return NopTracer{} }

func (NopLogger) Debug(context.Context, string, ...any) {}
func (NopLogger) Info(context.Context, string, ...any)  {}
func (NopLogger) Warn(context.Context, string, ...any)  {}
func (NopLogger) Error(context.Context, string, ...any) {}

func (NopMetrics) IncCounter(string, float64, ...string)        {}
func (NopMetrics) RecordTimer(string, time.Duration, ...string) {}

func (NopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (nopSpan) End(...trace.SpanEndOption)              {}
func (nopSpan) SetStatus(codes.Code, string)            {}
func (nopSpan) RecordError(error, ...trace.EventOption) {}
