package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

const uniqueViolation = "23505"

const orderColumns = `
	id, owner_email, items, currency, subtotal_minor, shipping_fee_minor, tax_minor, total_minor,
	payment_method, status,
	COALESCE(gateway_reference, ''), COALESCE(transaction_id, ''), COALESCE(authorization_code, ''),
	COALESCE(capture_reference, ''), COALESCE(refund_reason, ''), COALESCE(refund_status, ''),
	created_at, updated_at, delivered_at, refunded_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, owner_email, items, currency, subtotal_minor, shipping_fee_minor, tax_minor, total_minor,
			payment_method, status, gateway_reference, transaction_id, authorization_code, capture_reference,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), $15, $16)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.OwnerEmail,
		items,
		order.Currency,
		order.SubtotalMinor,
		order.ShippingFeeMinor,
		order.TaxMinor,
		order.TotalMinor,
		order.PaymentMethod,
		order.Status,
		order.GatewayReference,
		order.TransactionID,
		order.AuthorizationCode,
		order.CaptureReference,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert order %s: %w", order.ID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByReference matches the checkout reference only. Capture references are not lookup keys.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_reference = $1`, reference)
}

func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	if transactionID == "" {
		return nil, ports.ErrNotFound
	}
	return r.getOne(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, transactionID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text = '' OR lower(owner_email) = lower($2))
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	offset := (filter.Page - 1) * filter.PageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, filter.OwnerEmail, filter.CreatedBefore, filter.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// Update writes the mutable lifecycle fields. Money, items and ownership are never rewritten.
func (r *Repository) Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1,
		    gateway_reference = COALESCE(NULLIF($2, ''), gateway_reference),
		    transaction_id = NULLIF($3, ''),
		    authorization_code = NULLIF($4, ''),
		    capture_reference = NULLIF($5, ''),
		    refund_reason = NULLIF($6, ''),
		    refund_status = NULLIF($7, ''),
		    updated_at = $8,
		    delivered_at = $9,
		    refunded_at = $10
		WHERE id = $11 AND status = $12
	`

	result, err := r.pool.Exec(ctx, query,
		order.Status,
		order.GatewayReference,
		order.TransactionID,
		order.AuthorizationCode,
		order.CaptureReference,
		order.RefundReason,
		order.RefundStatus,
		order.UpdatedAt,
		order.DeliveredAt,
		order.RefundedAt,
		order.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check order %s: %w", order.ID, err)
	}
	if !exists {
		return fmt.Errorf("update order %s: %w", order.ID, ports.ErrNotFound)
	}
	return fmt.Errorf("update order %s from %s: %w", order.ID, expected, ports.ErrConflict)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order        domain.Order
		items        []byte
		refundStatus string
	)
	err := row.Scan(
		&order.ID,
		&order.OwnerEmail,
		&items,
		&order.Currency,
		&order.SubtotalMinor,
		&order.ShippingFeeMinor,
		&order.TaxMinor,
		&order.TotalMinor,
		&order.PaymentMethod,
		&order.Status,
		&order.GatewayReference,
		&order.TransactionID,
		&order.AuthorizationCode,
		&order.CaptureReference,
		&order.RefundReason,
		&refundStatus,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.DeliveredAt,
		&order.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", order.ID, err)
	}
	order.RefundStatus = domain.RefundStatus(refundStatus)
	return &order, nil
}
