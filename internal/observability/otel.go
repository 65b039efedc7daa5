package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig controls the tracer used to wrap provider calls, mirroring
// the teacher's InitOTel but scaled down to what a single-process
// experiment daemon needs: no external collector is assumed to be
// reachable (the runtime is a CLI-launched daemon, not a server mesh), so
// when Enabled the installed tracer provider has no exporter; when not
// Enabled (the zero value) the otel no-op tracer stays in place.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// InitTracing installs a process-wide TracerProvider. When disabled, the
// global no-op tracer from the otel API is left in place so every call site
// can unconditionally start spans.
func InitTracing(_ context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	name := cfg.ServiceName
	if name == "" {
		name = "pidgin"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(name),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartSpan starts a span under the "pidgin" tracer, tagged with the given
// attributes (the provider adapters pass the model name). Mirrors
// internal/llm.StartRequestSpan in the teacher.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("pidgin").Start(ctx, operation)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}
