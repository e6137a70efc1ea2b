package adapters

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JulesNsenda/chakucart/internal/database"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/metrics"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/telemetry"
)

// ObservableRepository traces and times every order store call. Successful updates that change
// status are counted as transitions.
type ObservableRepository struct {
	repo        ports.OrderRepository
	metrics     *database.Metrics
	transitions *metrics.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, dbMetrics *database.Metrics, transitions *metrics.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:        repo,
		metrics:     dbMetrics,
		transitions: transitions,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.payment_method", string(order.PaymentMethod)),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order)
	r.record(ctx, "create_order", start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, "GetByID", "get_order_by_id", attribute.String("order.id", id), func(ctx context.Context) (*domain.Order, error) {
		return r.repo.GetByID(ctx, id)
	})
}

func (r *ObservableRepository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return r.get(ctx, "GetByReference", "get_order_by_reference", attribute.String("order.reference", reference), func(ctx context.Context) (*domain.Order, error) {
		return r.repo.GetByReference(ctx, reference)
	})
}

func (r *ObservableRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	return r.get(ctx, "GetByTransactionID", "get_order_by_transaction_id", attribute.String("order.transaction_id", transactionID), func(ctx context.Context) (*domain.Order, error) {
		return r.repo.GetByTransactionID(ctx, transactionID)
	})
}

func (r *ObservableRepository) get(
	ctx context.Context,
	method, operation string,
	key attribute.KeyValue,
	fn func(ctx context.Context) (*domain.Order, error),
) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository."+method)
	defer span.End()

	telemetry.AddSpanAttributes(span, key, attribute.String("operation", operation))

	start := time.Now()
	order, err := fn(ctx)
	r.record(ctx, operation, start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	orders, err := r.repo.List(ctx, filter)
	r.record(ctx, "list_orders", start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
	telemetry.SetSpanSuccess(span)
	return orders, nil
}

func (r *ObservableRepository) Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Update")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.expected_status", string(expected)),
		attribute.String("order.new_status", string(order.Status)),
		attribute.String("operation", "update"),
	)

	start := time.Now()
	err := r.repo.Update(ctx, order, expected)
	r.record(ctx, "update_order", start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	if r.transitions != nil && expected != order.Status {
		r.transitions.RecordTransition(ctx, string(expected), string(order.Status))
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) record(ctx context.Context, operation string, start time.Time, err error) {
	recordQuery(ctx, r.metrics, operation, start, err)
}

// recordQuery does not count lookups that found nothing as failed queries.
func recordQuery(ctx context.Context, m *database.Metrics, operation string, start time.Time, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		err = nil
	}
	m.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)
}

// ObservableCustomerRepository traces and times customer store calls.
type ObservableCustomerRepository struct {
	repo    ports.CustomerRepository
	metrics *database.Metrics
}

func NewObservableCustomerRepository(repo ports.CustomerRepository, dbMetrics *database.Metrics) *ObservableCustomerRepository {
	return &ObservableCustomerRepository{repo: repo, metrics: dbMetrics}
}

func (r *ObservableCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := telemetry.StartSpan(ctx, "CustomerRepository.GetByEmail")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("operation", "get_customer_by_email"))

	start := time.Now()
	customer, err := r.repo.GetByEmail(ctx, email)
	recordQuery(ctx, r.metrics, "get_customer_by_email", start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return customer, nil
}

func (r *ObservableCustomerRepository) Save(ctx context.Context, customer domain.Customer) error {
	ctx, span := telemetry.StartSpan(ctx, "CustomerRepository.Save")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("operation", "save_customer"),
		attribute.Bool("customer.has_instrument", customer.HasLinkedInstrument()),
	)

	start := time.Now()
	err := r.repo.Save(ctx, customer)
	recordQuery(ctx, r.metrics, "save_customer", start, err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
