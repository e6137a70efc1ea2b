package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JulesNsenda/chakucart/internal/orders/metrics"
	"github.com/JulesNsenda/chakucart/internal/telemetry"
)

// logAttrser is implemented by commands and results that want their fields on logs and spans.
type logAttrser interface {
	LogAttrs() []slog.Attr
}

type ObservableCommandHandler[C, R any] struct {
	name    string
	handler Handler[C, R]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler[C, R any](name string, handler Handler[C, R], logger *slog.Logger, metrics *metrics.Metrics) *ObservableCommandHandler[C, R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObservableCommandHandler[C, R]{
		name:    name,
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCommandHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	ctx, span := telemetry.StartSpan(ctx, o.name+"Command.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		if o.metrics == nil {
			return
		}
		o.metrics.RecordCommandDuration(ctx, o.name, time.Since(start).Seconds())
		o.metrics.RecordCommand(ctx, o.name, success)
	}()

	cmdAttrs := attrsOf(cmd)
	telemetry.AddSpanAttributes(span, spanAttributes(cmdAttrs)...)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "handling command", append([]slog.Attr{slog.String("command", o.name)}, cmdAttrs...)...)

	result, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.LogAttrs(ctx, slog.LevelError, "command failed",
			append([]slog.Attr{slog.String("command", o.name), slog.Any("error", err)}, cmdAttrs...)...)
		return result, err
	}

	resultAttrs := attrsOf(result)
	telemetry.AddSpanAttributes(span, spanAttributes(resultAttrs)...)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "command succeeded", append([]slog.Attr{slog.String("command", o.name)}, resultAttrs...)...)

	success = true
	telemetry.SetSpanSuccess(span)
	return result, nil
}

func attrsOf(v any) []slog.Attr {
	if a, ok := v.(logAttrser); ok {
		return a.LogAttrs()
	}
	return nil
}

func spanAttributes(attrs []slog.Attr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, attribute.String(a.Key, a.Value.String()))
	}
	return out
}
