// Package observability wires OpenTelemetry tracing, Prometheus
// metrics, and a health checker, and exposes a structured *slog.Logger
// for the HTTP/worker layers. Tracing uses the stdout span exporter;
// there is no OTLP collector to ship spans to.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName names the tracer/resource when no override is
// configured.
const DefaultServiceName = "qagraph"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// TracingConfig configures Init.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Init sets up the global tracer. With Enabled false it installs a
// no-op tracer so StartSpan call sites never need a nil check.
func Init(cfg TracingConfig) error {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	if !cfg.Enabled {
		tracer = otel.GetTracerProvider().Tracer(name)
		return nil
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("observability: build stdout exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(name)
	return nil
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return tracerProvider.Shutdown(ctx)
}

// StartSpan starts a span under name, falling back to the global
// tracer provider (a no-op if Init was never called) so this is always
// safe to call.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tr := tracer
	if tr == nil {
		tr = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}
	return tr.Start(ctx, name, opts...)
}
