package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach the log output with their values. Authorization codes are reusable
// card tokens and must be treated like secrets.
var sensitiveKeys = map[string]struct{}{
	"authorization_code": {},
	"authorizationcode":  {},
	"secret_key":         {},
	"authorization":      {},
	"password":           {},
}

// NewLogger returns a JSON logger that stamps trace_id/span_id from the context onto every record.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return slog.New(&traceHandler{base: base})
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// traceHandler replays WithAttrs/WithGroup calls in order on top of a base handler that already
// carries the trace ids, so the ids stay at the top level of the record.
type traceHandler struct {
	base slog.Handler
	ops  []func(slog.Handler) slog.Handler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := h.base

	traceID, spanID := spanIDs(ctx)
	if traceID != "" {
		ids := []slog.Attr{slog.String("trace_id", traceID)}
		if spanID != "" {
			ids = append(ids, slog.String("span_id", spanID))
		}
		handler = handler.WithAttrs(ids)
	}

	for _, op := range h.ops {
		handler = op(handler)
	}
	return handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *traceHandler) with(op func(slog.Handler) slog.Handler) *traceHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &traceHandler{base: h.base, ops: append(ops, op)}
}
