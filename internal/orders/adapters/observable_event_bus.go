package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JulesNsenda/chakucart/internal/events"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *events.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *events.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) Publish(ctx context.Context, event domain.OrderEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", event.OrderID),
		attribute.String("event.type", event.Type),
		attribute.String("order.from_status", string(event.From)),
		attribute.String("order.to_status", string(event.To)),
	)

	start := time.Now()
	err := e.bus.Publish(ctx, event)
	if e.metrics != nil {
		e.metrics.RecordPublish(ctx, event.Type, time.Since(start).Seconds(), err == nil)
	}

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
