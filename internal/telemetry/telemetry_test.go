package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testConfig() Config {
	return Config{
		ServiceName:    "chakucart-api",
		ServiceVersion: "test",
		Environment:    "test",
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRate:     1.0,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: ErrMissingServiceName},
		{name: "missing version", mutate: func(c *Config) { c.ServiceVersion = "" }, wantErr: ErrMissingServiceVersion},
		{name: "sample rate above one", mutate: func(c *Config) { c.SampleRate = 1.5 }, wantErr: ErrInvalidSampleRate},
		{name: "negative sample rate", mutate: func(c *Config) { c.SampleRate = -0.1 }, wantErr: ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want %v wrapped in ErrInvalidConfig", err, tt.wantErr)
			}
		})
	}
}

func TestInitializeInstallsProviders(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	tel, err := Initialize(ctx, testConfig(), WithTraceExporter(spans), WithMetricReader(reader))
	if err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	if tel.TracerProvider() == nil || tel.MeterProvider() == nil {
		t.Fatal("expected both providers")
	}

	_, span := StartSpan(ctx, "OrderRepository.Update", attribute.String("order.id", "order-1"))
	RecordSpanError(span, errors.New("conflict"))
	span.End()
	if err := tel.TracerProvider().ForceFlush(ctx); err != nil {
		t.Fatal(err)
	}

	got := spans.GetSpans()
	if len(got) != 1 || got[0].Name != "OrderRepository.Update" {
		t.Fatalf("unexpected spans: %+v", got)
	}
	if got[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", got[0].Status.Code)
	}

	counter, err := otel.GetMeterProvider().Meter("test").Int64Counter("checkout_test_total")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected metrics from the installed meter provider")
	}
}

func TestInitializeWithoutEndpointSkipsExport(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.EnableMetrics = false

	tel, err := Initialize(ctx, cfg)
	if err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	if tel.MeterProvider() != nil {
		t.Error("metrics were disabled")
	}
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceName = ""
	if _, err := Initialize(context.Background(), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Initialize() = %v, want ErrInvalidConfig", err)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 0, want: sdktrace.NeverSample().Description()},
		{rate: 1, want: sdktrace.AlwaysSample().Description()},
		{rate: 0.25, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		if got := createSampler(tt.rate).Description(); got != tt.want {
			t.Errorf("createSampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestSpanHelpersTolerateNil(t *testing.T) {
	AddSpanAttributes(nil, attribute.String("k", "v"))
	RecordSpanError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	if TraceID(context.Background()) != "" {
		t.Error("TraceID without a span must be empty")
	}
}
