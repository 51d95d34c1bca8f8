package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "default config",
			config: Config{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
			wantErr: false,
		},
		{
			name: "empty service name gets default",
			config: Config{
				Enabled:        true,
				ServiceName:    "",
				ServiceVersion: "",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil {
				if inst == nil {
					t.Error("New() returned nil instrumentation")
					return
				}

				if inst.Meter("http") == nil {
					t.Error("Meter('http') returned nil")
				}
				if inst.Meter("auth") == nil {
					t.Error("Meter('auth') returned nil")
				}

				if inst.Tracer("http") == nil {
					t.Error("Tracer('http') returned nil")
				}
				if inst.Tracer("auth") == nil {
					t.Error("Tracer('auth') returned nil")
				}

				if inst.Metrics() == nil {
					t.Error("Metrics() returned nil")
				}

				if inst.TracerProvider() == nil {
					t.Error("TracerProvider() returned nil")
				}
				if inst.MeterProvider() == nil {
					t.Error("MeterProvider() returned nil")
				}

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := inst.Shutdown(ctx); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}

				// Shutdown must be idempotent.
				if err := inst.Shutdown(ctx); err != nil {
					t.Errorf("Second Shutdown() error = %v", err)
				}
			}
		})
	}
}

func TestInstrumentation_NoOpProviders(t *testing.T) {
	inst, err := New(Config{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()

	// Metrics recording must be a safe no-op.
	inst.Metrics().RecordLoginAttempt(ctx, true)
	inst.Metrics().RecordLoginAttempt(ctx, false)
	inst.Metrics().RecordRegistration(ctx, true)
	inst.Metrics().RecordTokenIssued(ctx)
	inst.Metrics().RecordTokenVerified(ctx, false)
	inst.Metrics().RecordRateLimitExceeded(ctx, "login")
	inst.Metrics().RecordInjectionDetected(ctx, "login", "email")
	inst.Metrics().RecordAccountStoreCall(ctx, "rest", "login", 502, 12.3, errors.New("bad gateway"))

	_, span := inst.Tracer("auth").Start(ctx, "test-span")
	span.End()
}

func TestInstrumentation_ConcurrentAccess(t *testing.T) {
	inst, err := New(Config{
		Enabled:        true,
		ServiceName:    "concurrent-test",
		ServiceVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	done := make(chan bool)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				inst.Metrics().RecordLoginAttempt(ctx, j%2 == 0)
				inst.Metrics().RecordHTTPRequest(ctx, "POST", fmt.Sprintf("/auth/login-%d", id), 200, 1.5)

				_, span := inst.Tracer("auth").Start(ctx, "concurrent-span")
				span.End()
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestConfig_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	}()

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("Default ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("Default ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
}

func TestRegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 3 },
		func() int64 { return 7 },
	)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}
}

func TestSpanHelpersNilSafe(t *testing.T) {
	// All helpers must tolerate a nil span.
	RecordError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "failed")
	SetSpanAttributes(nil, attribute.String("k", "v"))
	AddAuthFlowAttributes(nil, "login", "subject-1")
	AddStorageAttributes(nil, "save_token", "memory")
	AddStoreAttributes(nil, "rest", "login")
	AddHTTPAttributes(nil, "POST", "/auth/login", 200)
	AddSecurityAttributes(nil, "203.0.113.9")
}

func TestSpanHelpers(t *testing.T) {
	tracer := tracenoop.NewTracerProvider().Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	defer span.End()

	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	SetSpanSuccess(span)
	AddAuthFlowAttributes(span, "login", "subject-1")
	AddAuthFlowAttributes(span, "", "")
	AddSecurityAttributes(span, "")
}

func BenchmarkMetrics_RecordHTTPRequest(b *testing.B) {
	inst, _ := New(Config{Enabled: true})
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	metrics := inst.Metrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordHTTPRequest(ctx, "POST", "/auth/login", 200, 123.45)
	}
}

func BenchmarkMetrics_RecordHTTPRequest_NoOp(b *testing.B) {
	inst, _ := New(Config{Enabled: false})
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	metrics := inst.Metrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordHTTPRequest(ctx, "POST", "/auth/login", 200, 123.45)
	}
}

func BenchmarkTracing_SpanCreation(b *testing.B) {
	inst, _ := New(Config{Enabled: true})
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	tracer := inst.Tracer("auth")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.Start(ctx, "test-operation")
		AddAuthFlowAttributes(span, "login", "subject-1")
		SetSpanSuccess(span)
		span.End()
	}
}
