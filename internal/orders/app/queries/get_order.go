package queries

import (
	"context"
	"fmt"
	"strings"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID on behalf of its owner.
type GetOrderQuery struct {
	OrderID string
	Email   string
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if found.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle executes the query. Orders owned by another email are reported as not found.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(query.Email) {
		return nil, fmt.Errorf("order %s: %w", query.OrderID, ports.ErrNotFound)
	}

	return order, nil
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(q.Email) == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	return nil
}
