package commands_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JulesNsenda/chakucart/internal/orders/adapters/memory"
	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

type mockGateway struct {
	mu    sync.Mutex
	calls map[string]int

	initializeFn         func(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error)
	verifyFn             func(ctx context.Context, reference string) (gateway.VerifyResult, error)
	checkAuthorizationFn func(ctx context.Context, req gateway.CheckAuthorizationRequest) (gateway.CheckAuthorizationResult, error)
	chargeFn             func(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error)
	refundFn             func(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResult, error)
	findOrCreateFn       func(ctx context.Context, email string) (gateway.Customer, error)
	attachFn             func(ctx context.Context, customerCode, authorizationCode string) error
}

func (m *mockGateway) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

func (m *mockGateway) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockGateway) InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error) {
	m.record(gateway.OpInitialize)
	if m.initializeFn != nil {
		return m.initializeFn(ctx, req)
	}
	return gateway.InitializeResult{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "access",
	}, nil
}

func (m *mockGateway) VerifyTransaction(ctx context.Context, reference string) (gateway.VerifyResult, error) {
	m.record(gateway.OpVerify)
	if m.verifyFn != nil {
		return m.verifyFn(ctx, reference)
	}
	return gateway.VerifyResult{}, gateway.Rejected(gateway.OpVerify, "Transaction reference not found")
}

func (m *mockGateway) CheckAuthorization(ctx context.Context, req gateway.CheckAuthorizationRequest) (gateway.CheckAuthorizationResult, error) {
	m.record(gateway.OpCheckAuthorization)
	if m.checkAuthorizationFn != nil {
		return m.checkAuthorizationFn(ctx, req)
	}
	return gateway.CheckAuthorizationResult{Approved: true}, nil
}

func (m *mockGateway) ChargeAuthorization(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	m.record(gateway.OpCharge)
	if m.chargeFn != nil {
		return m.chargeFn(ctx, req)
	}
	return gateway.ChargeResult{Succeeded: true, Status: "success", TransactionID: "txn-capture", Reference: req.Reference}, nil
}

func (m *mockGateway) Refund(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResult, error) {
	m.record(gateway.OpRefund)
	if m.refundFn != nil {
		return m.refundFn(ctx, req)
	}
	return gateway.RefundResult{Accepted: true, Status: "pending"}, nil
}

func (m *mockGateway) FindOrCreateCustomer(ctx context.Context, email string) (gateway.Customer, error) {
	m.record(gateway.OpFindCustomer)
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, email)
	}
	return gateway.Customer{Code: "CUS_" + email, Email: email}, nil
}

func (m *mockGateway) AttachAuthorization(ctx context.Context, customerCode, authorizationCode string) error {
	m.record(gateway.OpUpdateCustomer)
	if m.attachFn != nil {
		return m.attachFn(ctx, customerCode, authorizationCode)
	}
	return nil
}

type mockEventBus struct {
	mu        sync.Mutex
	events    []domain.OrderEvent
	publishFn func(ctx context.Context, event domain.OrderEvent) error
}

func (m *mockEventBus) Publish(ctx context.Context, event domain.OrderEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, event)
	}
	return nil
}

func (m *mockEventBus) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	deps      commands.Dependencies
	orders    *memory.Repository
	customers *memory.CustomerRepository
	gateway   *mockGateway
	events    *mockEventBus
}

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:    memory.NewRepository(),
		customers: memory.NewCustomerRepository(),
		gateway:   &mockGateway{},
		events:    &mockEventBus{},
	}
	var seq int
	var mu sync.Mutex
	f.deps = commands.Dependencies{
		Orders:    f.orders,
		Customers: f.customers,
		Gateway:   f.gateway,
		Locker:    memory.NewLocker(),
		Events:    f.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Settings: commands.PaymentSettings{
			Currency:            "ZAR",
			ProviderFeePercent:  decimal.RequireFromString("12.5"),
			GoodsSubaccount:     "ACCT_goods",
			DeliverySubaccount:  "ACCT_delivery",
			CardLinkAmountUnits: 100,
		},
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("order-%d", seq)
		},
	}
	return f
}

func (f *fixture) linkCard(t *testing.T, email, code string) {
	t.Helper()
	err := f.customers.Save(context.Background(), domain.Customer{
		Email:             email,
		CustomerCode:      "CUS_1",
		AuthorizationCode: code,
		CreatedAt:         fixedNow,
		UpdatedAt:         fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// seedOrder stores an order worth 100.00 + 50.00 shipping in the given state.
func (f *fixture) seedOrder(t *testing.T, id string, method domain.PaymentMethod, status domain.OrderStatus) domain.Order {
	t.Helper()
	order := domain.Order{
		ID:               id,
		OwnerEmail:       "ada@example.com",
		Items:            []domain.Item{{ProductRef: "basket", UnitPriceMinor: 10000, Quantity: 1}},
		Currency:         "ZAR",
		SubtotalMinor:    10000,
		ShippingFeeMinor: 5000,
		TotalMinor:       15000,
		PaymentMethod:    method,
		Status:           status,
		GatewayReference: "ORDER_" + id,
		CreatedAt:        fixedNow,
		UpdatedAt:        fixedNow,
	}
	if method == domain.PaymentPayOnDelivery {
		order.GatewayReference = ""
		order.AuthorizationCode = "AUTH_saved"
	}
	if status == domain.StatusConfirmed || status == domain.StatusDelivered || status == domain.StatusRefunded {
		order.TransactionID = "txn-" + id
	}
	if err := f.orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	return order
}

func basket() []commands.CartItem {
	return []commands.CartItem{
		{ProductRef: "apples", UnitPrice: decimal.RequireFromString("25.00"), Quantity: 2},
		{ProductRef: "bread", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 1},
	}
}
