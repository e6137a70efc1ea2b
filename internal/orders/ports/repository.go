package ports

import (
	"context"
	"errors"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// Update persists order only if the stored status still equals expected.
	Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error
}

// CustomerRepository stores customers keyed by normalized email.
type CustomerRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Save(ctx context.Context, customer domain.Customer) error
}

// ListFilter narrows list queries. Results are newest first.
type ListFilter struct {
	Status        *domain.OrderStatus
	OwnerEmail    string
	CreatedBefore *time.Time
	Page          int
	PageSize      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies paging defaults.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

var (
	// ErrNotFound is returned when the requested order or customer does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by Update when the stored status moved underneath the caller.
	ErrConflict = errors.New("order was modified concurrently")
	// ErrDuplicate is returned by Create for an id or gateway reference that already exists.
	ErrDuplicate = errors.New("order already exists")
)
