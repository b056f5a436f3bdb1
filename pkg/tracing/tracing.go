// Package tracing records strand recomputations as OpenTelemetry spans.
//
// The hook consumes the core's event stream, so enabling tracing is two
// lines in main():
//
//	strand.SetEventHook(tracing.NewHook())
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// supplied with WithTracerProvider. Configure the global provider before
// wiring the hook:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strand-dev/strand/pkg/strand"
)

// Default tracer name for strand applications.
const defaultTracerName = "strand"

// Config configures the tracing hook.
type Config struct {
	// TracerName is the name of the tracer (default: "strand").
	TracerName string

	// IncludeCellNames includes cell names as span attributes.
	// Names may carry application information; enabled by default.
	IncludeCellNames bool

	// Filter determines which recomputations to trace.
	// Return true to trace the event, false to skip.
	// If nil, all recomputations are traced.
	Filter func(ev strand.Event) bool

	// provider resolves the tracer; nil means the global provider.
	provider trace.TracerProvider
}

// Option configures the tracing hook.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithCellNames enables or disables cell-name attributes.
func WithCellNames(include bool) Option {
	return func(c *Config) {
		c.IncludeCellNames = include
	}
}

// WithFilter sets a filter function for recompute events.
func WithFilter(filter func(ev strand.Event) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.provider = tp
	}
}

// defaultConfig returns the default tracing configuration.
func defaultConfig() Config {
	return Config{
		TracerName:       defaultTracerName,
		IncludeCellNames: true,
	}
}

// NewHook builds an event hook that records one span per recomputation.
// Recompute events carry the evaluation duration, so the span is opened
// retroactively at the evaluation's start time and closed at its end;
// failed evaluations get codes.Error and the recorded error.
//
// Install it directly, or combine it with other consumers:
//
//	strand.SetEventHook(strand.CombineHooks(tracing.NewHook(), inspector.EventHook()))
func NewHook(opts ...Option) func(strand.Event) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.provider != nil {
		tracer = config.provider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return func(ev strand.Event) {
		if ev.Kind != strand.EventRecomputeFinished {
			return
		}
		if config.Filter != nil && !config.Filter(ev) {
			return
		}

		started := time.Now().Add(-ev.Duration)
		_, span := tracer.Start(context.Background(), "strand.recompute",
			trace.WithTimestamp(started),
			trace.WithSpanKind(trace.SpanKindInternal),
		)

		attrs := []attribute.KeyValue{
			attribute.Int64("strand.cell.id", int64(ev.CellID)),
			attribute.Bool("strand.cell.derived", ev.Derived),
		}
		if config.IncludeCellNames && ev.CellName != "" {
			attrs = append(attrs, attribute.String("strand.cell.name", ev.CellName))
		}
		span.SetAttributes(attrs...)

		if ev.Err != nil {
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, ev.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End(trace.WithTimestamp(started.Add(ev.Duration)))
	}
}
