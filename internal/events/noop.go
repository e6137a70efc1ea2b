package events

import (
	"context"
	"log/slog"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
)

// NoopEventBus logs events without sending them anywhere. Used for local development.
type NoopEventBus struct {
	logger *slog.Logger
}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) Publish(ctx context.Context, event domain.OrderEvent) error {
	n.logger.DebugContext(ctx, "event::"+event.Type,
		"order_id", event.OrderID,
		"from", event.From,
		"to", event.To,
	)
	return nil
}
