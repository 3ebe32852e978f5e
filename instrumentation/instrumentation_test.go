package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if inst.MeterProvider() == nil {
		t.Error("MeterProvider() returned nil")
	}
	if inst.TracerProvider() == nil {
		t.Error("TracerProvider() returned nil")
	}
}

func TestNew_Disabled(t *testing.T) {
	inst, err := New(Config{ServiceName: "test", Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Recording against no-op providers must not panic.
	m := inst.Metrics()
	ctx := context.Background()
	m.RecordRequest(ctx, "GET", "/api/data", 200, 1.5)
	m.RecordBlocked(ctx, "ip_blocked")
	m.RecordRateLimitExceeded(ctx, "sliding_window")
	m.RecordAuthFailure(ctx, "INVALID_TOKEN")
	m.RecordCSRFRejected(ctx)
}

func TestInstrumentation_MeterAndTracerScopes(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.Meter("pipeline") == nil {
		t.Error("Meter() returned nil")
	}
	if inst.Tracer("pipeline") == nil {
		t.Error("Tracer() returned nil")
	}
}

func TestInstrumentation_ShutdownIdempotent(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestInstrumentation_RegisterSizeCallbacks(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = inst.RegisterSizeCallbacks(
		func() int64 { return 1 },
		func() int64 { return 2 },
		nil,
		nil,
	)
	if err != nil {
		t.Errorf("RegisterSizeCallbacks() error = %v", err)
	}
}

func TestTracingHelpers_NilSafe(t *testing.T) {
	// All helpers must tolerate nil spans.
	RecordError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "failed")
	SetSpanAttributes(nil)
	AddRequestAttributes(nil, "req-1", "GET", "/")
	AddAuthAttributes(nil, "user-1", true)
	AddSecurityAttributes(nil, "203.0.113.7")
}

func TestShouldLogClientIPs(t *testing.T) {
	inst, _ := New(Config{LogClientIPs: true})
	if !inst.ShouldLogClientIPs() {
		t.Error("ShouldLogClientIPs() = false, want true")
	}

	inst, _ = New(Config{LogClientIPs: false})
	if inst.ShouldLogClientIPs() {
		t.Error("ShouldLogClientIPs() = true, want false")
	}
}
