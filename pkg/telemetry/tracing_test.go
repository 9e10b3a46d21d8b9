package telemetry

import (
	"context"
	"testing"
)

func TestInitTracerDisabledReturnsNoOpShutdown(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned error: %v", err)
	}
}

func TestInitTracerEnabledInstallsProvider(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "ctxengine-test",
		ServiceVersion: "test",
	})
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
}
