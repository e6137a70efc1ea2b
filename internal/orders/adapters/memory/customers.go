package memory

import (
	"context"
	"sync"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// CustomerRepository keeps customers in memory keyed by normalized email.
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{customers: make(map[string]domain.Customer)}
}

func (r *CustomerRepository) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	customer, ok := r.customers[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &customer, nil
}

// Save inserts or replaces the customer.
func (r *CustomerRepository) Save(_ context.Context, customer domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer.Email = domain.NormalizeEmail(customer.Email)
	if existing, ok := r.customers[customer.Email]; ok && !existing.CreatedAt.IsZero() {
		customer.CreatedAt = existing.CreatedAt
	}
	r.customers[customer.Email] = customer
	return nil
}
