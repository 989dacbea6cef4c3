package telemetry

import (
	"context"
	"testing"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{ServiceName: "reaper"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Not parallel: installs the global tracer provider.
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		ServiceName: "reaper",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	// No spans were recorded, so shutdown has nothing to send.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
