package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config captures the knobs for wiring the engine's tracer provider. Engines
// embedded in a keeper process typically run with Traces disabled and rely
// on the caller's own provider; Init is offered for standalone deployments.
type Config struct {
	ServiceName string
	Environment string
	Traces      bool
}

// Init installs a global TracerProvider tagged with the engine's service
// resource. Callers should invoke the returned shutdown function during
// teardown. When cfg.Traces is false, Init installs nothing and returns a
// no-op shutdown so callers do not need to branch on configuration.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Traces {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name required for telemetry")
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the globally installed provider. No
// package in this module calls it; keeper batches are not wrapped in spans.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
