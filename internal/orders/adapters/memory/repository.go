package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// Repository provides an in-memory order store useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Create stores a new order. Ids and gateway references must be unique.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, ports.ErrDuplicate)
	}
	if order.GatewayReference != "" {
		for _, existing := range r.orders {
			if existing.GatewayReference == order.GatewayReference {
				return fmt.Errorf("reference %s: %w", order.GatewayReference, ports.ErrDuplicate)
			}
		}
	}
	r.orders[order.ID] = clone(order)
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	found := clone(order)
	return &found, nil
}

func (r *Repository) GetByReference(_ context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	return r.find(func(o domain.Order) bool { return o.GatewayReference == reference })
}

func (r *Repository) GetByTransactionID(_ context.Context, transactionID string) (*domain.Order, error) {
	if transactionID == "" {
		return nil, ports.ErrNotFound
	}
	return r.find(func(o domain.Order) bool { return o.TransactionID == transactionID })
}

func (r *Repository) find(match func(domain.Order) bool) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if match(order) {
			found := clone(order)
			return &found, nil
		}
	}
	return nil, ports.ErrNotFound
}

// List returns orders newest first. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.OwnerEmail != "" && !order.IsOwnedBy(filter.OwnerEmail) {
			continue
		}
		if filter.CreatedBefore != nil && !order.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := (filter.Page - 1) * filter.PageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + filter.PageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, 0, end-start)
	for _, order := range result[start:end] {
		slice = append(slice, clone(order))
	}
	return slice, nil
}

// Update replaces the order when its stored status equals expected. Money fields never change.
func (r *Repository) Update(_ context.Context, order domain.Order, expected domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if stored.Status != expected {
		return fmt.Errorf("order %s is %s, expected %s: %w", order.ID, stored.Status, expected, ports.ErrConflict)
	}

	updated := clone(order)
	updated.Items = stored.Items
	updated.Currency = stored.Currency
	updated.SubtotalMinor = stored.SubtotalMinor
	updated.ShippingFeeMinor = stored.ShippingFeeMinor
	updated.TaxMinor = stored.TaxMinor
	updated.TotalMinor = stored.TotalMinor
	updated.PaymentMethod = stored.PaymentMethod
	updated.OwnerEmail = stored.OwnerEmail
	updated.CreatedAt = stored.CreatedAt
	r.orders[order.ID] = updated
	return nil
}

func clone(order domain.Order) domain.Order {
	out := order
	out.Items = append([]domain.Item(nil), order.Items...)
	if order.DeliveredAt != nil {
		t := *order.DeliveredAt
		out.DeliveredAt = &t
	}
	if order.RefundedAt != nil {
		t := *order.RefundedAt
		out.RefundedAt = &t
	}
	return out
}
