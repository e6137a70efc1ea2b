package queries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// ListPendingOrdersQuery lists an owner's pay-on-delivery orders awaiting delivery, newest first.
// Before, when set, is an exclusive created-at cursor.
type ListPendingOrdersQuery struct {
	Email    string
	Page     int
	PageSize int
	Before   *time.Time
}

type ListPendingOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListPendingOrdersQueryHandler(repo ports.OrderRepository) *ListPendingOrdersQueryHandler {
	return &ListPendingOrdersQueryHandler{repo: repo}
}

func (h *ListPendingOrdersQueryHandler) Handle(ctx context.Context, query ListPendingOrdersQuery) ([]domain.Order, error) {
	if strings.TrimSpace(query.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	status := domain.StatusPending
	orders, err := h.repo.List(ctx, ports.ListFilter{
		Status:        &status,
		OwnerEmail:    domain.NormalizeEmail(query.Email),
		CreatedBefore: query.Before,
		Page:          query.Page,
		PageSize:      query.PageSize,
	}.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	return orders, nil
}
