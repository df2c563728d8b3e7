// Package tracing configures the OpenTelemetry tracer provider used for load
// and tool-call spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName names the service when Options leaves it empty
const DefaultServiceName = "attackgraph"

// DefaultEndpoint is the local OTLP gRPC collector
const DefaultEndpoint = "localhost:4317"

// Options configures span export
type Options struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
}

// ShutdownFunc flushes and stops span export
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a batching OTLP tracer provider as the global provider.
// When tracing is disabled the global no-op provider stays in place and the
// returned shutdown does nothing.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		return noopShutdown, nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := NewProvider(sdktrace.WithBatcher(exporter), opts)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// NewProvider builds a tracer provider with the service resource attached.
// Tests pass a span processor over an in-memory exporter.
func NewProvider(processor sdktrace.TracerProviderOption, opts Options) *sdktrace.TracerProvider {
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		attribute.String("service.component", "knowledge-base"),
	}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}

	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}
