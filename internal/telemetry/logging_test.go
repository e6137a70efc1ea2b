package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Fatalf("unexpected log lines: %v", lines)
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "VerifyPayment")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.InfoContext(ctx, "payment verified", "order_id", "order-1")
	logger.Info("no span")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v, want %s", lines[0]["trace_id"], span.SpanContext().TraceID())
	}
	if lines[0]["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %v, want %s", lines[0]["span_id"], span.SpanContext().SpanID())
	}
	if _, ok := lines[1]["trace_id"]; ok {
		t.Error("record without a span must not carry trace_id")
	}
}

func TestLoggerKeepsAttrAndGroupOrder(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "ConfirmDelivery")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).
		With("service", "chakucart-api").
		WithGroup("order").
		With("id", "order-1").
		WithGroup("capture")
	logger.InfoContext(ctx, "captured", "reference", "CAPTURE_1")

	lines := decodeLines(t, &buf)
	entry := lines[0]
	if entry["service"] != "chakucart-api" {
		t.Errorf("service = %v", entry["service"])
	}
	if _, ok := entry["trace_id"]; !ok {
		t.Error("trace_id must stay at the top level")
	}
	order, ok := entry["order"].(map[string]any)
	if !ok {
		t.Fatalf("order group missing: %v", entry)
	}
	if order["id"] != "order-1" {
		t.Errorf("order.id = %v", order["id"])
	}
	capture, ok := order["capture"].(map[string]any)
	if !ok || capture["reference"] != "CAPTURE_1" {
		t.Errorf("order.capture = %v", order["capture"])
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("card linked",
		"authorization_code", "AUTH_abc",
		slog.Group("gateway", slog.String("secret_key", "sk_live_x")),
		"email", "ada@example.com",
	)

	out := buf.String()
	for _, secret := range []string{"AUTH_abc", "sk_live_x"} {
		if strings.Contains(out, secret) {
			t.Errorf("log output leaked %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, "ada@example.com") {
		t.Errorf("non-sensitive attribute was dropped: %s", out)
	}
}
