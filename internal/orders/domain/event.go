package domain

import "time"

// OrderEvent is published after every successful status change.
type OrderEvent struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"orderId"`
	OwnerEmail string      `json:"ownerEmail"`
	From       OrderStatus `json:"from,omitempty"`
	To         OrderStatus `json:"to"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func EventType(status OrderStatus) string {
	return "order." + string(status)
}

// NewOrderEvent describes the move of order from "from" to its current status.
func NewOrderEvent(order Order, from OrderStatus) OrderEvent {
	return OrderEvent{
		Type:       EventType(order.Status),
		OrderID:    order.ID,
		OwnerEmail: order.OwnerEmail,
		From:       from,
		To:         order.Status,
		OccurredAt: order.UpdatedAt,
	}
}
