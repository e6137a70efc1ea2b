package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestInitializeMetrics(t *testing.T) {
	metrics, _ := newTestMetrics(t)

	if metrics.commandsTotal == nil {
		t.Error("commandsTotal is nil")
	}
	if metrics.commandDuration == nil {
		t.Error("commandDuration is nil")
	}
	if metrics.transitionsTotal == nil {
		t.Error("transitionsTotal is nil")
	}
}

func TestRecordCommand(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	ctx := context.Background()

	metrics.RecordCommand(ctx, "ConfirmDelivery", true)
	metrics.RecordCommand(ctx, "ConfirmDelivery", true)
	metrics.RecordCommand(ctx, "ConfirmDelivery", false)

	m, ok := findMetric(collect(t, reader), "checkout_commands_total")
	if !ok {
		t.Fatal("checkout_commands_total metric not found")
	}

	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", m.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[status.AsString()] += dp.Value
	}
	if counts["success"] != 2 || counts["error"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestRecordCommandDuration(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	metrics.RecordCommandDuration(context.Background(), "RequestRefund", 0.25)

	m, ok := findMetric(collect(t, reader), "checkout_command_duration_seconds")
	if !ok {
		t.Fatal("checkout_command_duration_seconds metric not found")
	}

	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", m.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("expected one observation, got %+v", hist.DataPoints)
	}
	cmd, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("command"))
	if cmd.AsString() != "RequestRefund" {
		t.Errorf("command attribute = %q", cmd.AsString())
	}
}

func TestRecordTransition(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	metrics.RecordTransition(context.Background(), "pending", "delivered")

	m, ok := findMetric(collect(t, reader), "order_transitions_total")
	if !ok {
		t.Fatal("order_transitions_total metric not found")
	}
	sum := m.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected data points: %+v", sum.DataPoints)
	}
}
