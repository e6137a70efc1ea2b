package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// CustomerRepository stores one row per normalized email.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := `
		SELECT email, COALESCE(customer_code, ''), COALESCE(authorization_code, ''),
		       COALESCE(card_last4, ''), COALESCE(card_brand, ''),
		       COALESCE(card_exp_month, ''), COALESCE(card_exp_year, ''),
		       created_at, updated_at
		FROM customers
		WHERE email = $1
	`

	var c domain.Customer
	err := r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)).Scan(
		&c.Email,
		&c.CustomerCode,
		&c.AuthorizationCode,
		&c.CardLast4,
		&c.CardBrand,
		&c.CardExpMonth,
		&c.CardExpYear,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select customer: %w", err)
	}

	return &c, nil
}

// Save upserts the customer. The original created_at is kept on conflict.
func (r *CustomerRepository) Save(ctx context.Context, c domain.Customer) error {
	query := `
		INSERT INTO customers (
			email, customer_code, authorization_code, card_last4, card_brand, card_exp_month, card_exp_year,
			created_at, updated_at
		)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (email) DO UPDATE SET
			customer_code = EXCLUDED.customer_code,
			authorization_code = EXCLUDED.authorization_code,
			card_last4 = EXCLUDED.card_last4,
			card_brand = EXCLUDED.card_brand,
			card_exp_month = EXCLUDED.card_exp_month,
			card_exp_year = EXCLUDED.card_exp_year,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		domain.NormalizeEmail(c.Email),
		c.CustomerCode,
		c.AuthorizationCode,
		c.CardLast4,
		c.CardBrand,
		c.CardExpMonth,
		c.CardExpYear,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	return nil
}
