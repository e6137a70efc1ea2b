package ports

import (
	"context"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
)

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
