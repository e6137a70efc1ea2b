package queries_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/adapters/memory"
	"github.com/JulesNsenda/chakucart/internal/orders/app/queries"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

var created = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *memory.Repository, id, email string, status domain.OrderStatus, at time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), domain.Order{
		ID:            id,
		OwnerEmail:    email,
		Items:         []domain.Item{{ProductRef: "eggs", UnitPriceMinor: 300, Quantity: 1}},
		SubtotalMinor: 300,
		TotalMinor:    300,
		PaymentMethod: domain.PaymentPayOnDelivery,
		Status:        status,
		CreatedAt:     at,
		UpdatedAt:     at,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetOrder(t *testing.T) {
	repo := memory.NewRepository()
	seed(t, repo, "o-1", "ada@example.com", domain.StatusPending, created)
	handler := queries.NewGetOrderQueryHandler(repo)

	tests := []struct {
		name    string
		query   queries.GetOrderQuery
		wantErr error
	}{
		{name: "owner can read", query: queries.GetOrderQuery{OrderID: "o-1", Email: "ADA@example.com"}},
		{name: "other owner gets not found", query: queries.GetOrderQuery{OrderID: "o-1", Email: "eve@example.com"}, wantErr: ports.ErrNotFound},
		{name: "unknown id", query: queries.GetOrderQuery{OrderID: "nope", Email: "ada@example.com"}, wantErr: ports.ErrNotFound},
		{name: "missing id", query: queries.GetOrderQuery{Email: "ada@example.com"}, wantErr: domain.ErrValidation},
		{name: "missing email", query: queries.GetOrderQuery{OrderID: "o-1"}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := handler.Handle(context.Background(), tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if order.ID != "o-1" {
				t.Errorf("got order %s", order.ID)
			}
		})
	}
}

func TestListPendingOrders(t *testing.T) {
	repo := memory.NewRepository()
	for i := 0; i < 3; i++ {
		seed(t, repo, fmt.Sprintf("p-%d", i), "ada@example.com", domain.StatusPending, created.Add(time.Duration(i)*time.Hour))
	}
	seed(t, repo, "d-0", "ada@example.com", domain.StatusDelivered, created)
	seed(t, repo, "x-0", "eve@example.com", domain.StatusPending, created)
	handler := queries.NewListPendingOrdersQueryHandler(repo)

	orders, err := handler.Handle(context.Background(), queries.ListPendingOrdersQuery{Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(orders) != 3 || orders[0].ID != "p-2" || orders[2].ID != "p-0" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	before := created.Add(90 * time.Minute)
	orders, err = handler.Handle(context.Background(), queries.ListPendingOrdersQuery{Email: "ada@example.com", Before: &before, PageSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].ID != "p-1" {
		t.Fatalf("unexpected cursor page: %+v", orders)
	}

	if _, err := handler.Handle(context.Background(), queries.ListPendingOrdersQuery{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
