// Package telemetry wires the engine's OpenTelemetry tracer provider,
// following the teacher's pkg/telemetry/tracing.go: an InitTracer that
// returns a shutdown func, no-op when tracing is disabled.
package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls whether the engine's per-turn spans (pkg/orchestrator)
// are recorded, and how they're tagged.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// InitTracer installs a process-global TracerProvider. Disabled
// deployments (the default — this engine has no Non-goal'd metrics
// backend wired up) get a no-op shutdown and otel.Tracer calls fall
// back to the SDK's built-in no-op provider.
func InitTracer(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, errors.Wrap(err, "build telemetry resource")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
