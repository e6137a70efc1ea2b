package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/split"
)

// PayOnDeliveryCommand creates an order that is charged against the customer's saved card on delivery.
// Total is optional and, when given, must equal the computed order total.
type PayOnDeliveryCommand struct {
	Email             string
	Cart              []CartItem
	Shipping          decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	AuthorizationCode string
}

func (c PayOnDeliveryCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("email", c.Email),
		slog.Int("cart_items", len(c.Cart)),
		slog.String("total", c.Total.String()),
	}
}

type PayOnDeliveryResult struct {
	Order domain.Order `json:"order"`
	// PreAuthDegraded is set when the gateway could not pre-authorize this currency.
	PreAuthDegraded bool `json:"preAuthDegraded,omitempty"`
}

func (r PayOnDeliveryResult) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("order_id", r.Order.ID),
		slog.Int64("total_minor", r.Order.TotalMinor),
		slog.Bool("pre_auth_degraded", r.PreAuthDegraded),
	}
}

type PayOnDeliveryHandler struct {
	deps Dependencies
}

func NewPayOnDeliveryHandler(deps Dependencies) *PayOnDeliveryHandler {
	return &PayOnDeliveryHandler{deps: deps.withDefaults()}
}

func (h *PayOnDeliveryHandler) Handle(ctx context.Context, cmd PayOnDeliveryCommand) (PayOnDeliveryResult, error) {
	order, err := newCheckoutOrder(h.deps, cmd.Email, cmd.Cart, cmd.Shipping, cmd.Tax, domain.PaymentPayOnDelivery)
	if err != nil {
		return PayOnDeliveryResult{}, err
	}
	if !cmd.Total.IsZero() && split.ToMinorUnits(cmd.Total) != order.TotalMinor {
		return PayOnDeliveryResult{}, fmt.Errorf("%w: total %s does not match computed total %s",
			domain.ErrValidation, cmd.Total, split.FromMinorUnits(order.TotalMinor))
	}

	customer, err := h.deps.Customers.GetByEmail(ctx, order.OwnerEmail)
	switch {
	case isNotFound(err):
		return PayOnDeliveryResult{}, fmt.Errorf("customer %s: %w", order.OwnerEmail, domain.ErrNoLinkedInstrument)
	case err != nil:
		return PayOnDeliveryResult{}, fmt.Errorf("load customer %s: %w", order.OwnerEmail, err)
	case !customer.HasLinkedInstrument():
		return PayOnDeliveryResult{}, fmt.Errorf("customer %s: %w", order.OwnerEmail, domain.ErrNoLinkedInstrument)
	}

	if code := strings.TrimSpace(cmd.AuthorizationCode); code != "" && code != customer.AuthorizationCode {
		return PayOnDeliveryResult{}, fmt.Errorf("%w: authorization code does not match the linked card", domain.ErrValidation)
	}

	check, err := h.deps.Gateway.CheckAuthorization(ctx, gateway.CheckAuthorizationRequest{
		Email:             order.OwnerEmail,
		AmountUnits:       order.TotalMinor,
		Currency:          order.Currency,
		AuthorizationCode: customer.AuthorizationCode,
	})
	if err != nil {
		return PayOnDeliveryResult{}, fmt.Errorf("pre-authorize order %s: %w", order.ID, err)
	}
	if !check.Approved {
		return PayOnDeliveryResult{}, fmt.Errorf("pre-authorize order %s: %w", order.ID,
			gateway.Rejected(gateway.OpCheckAuthorization, check.Message))
	}

	if err := order.AwaitDelivery(customer.AuthorizationCode, h.deps.Now()); err != nil {
		return PayOnDeliveryResult{}, err
	}
	if err := h.deps.Orders.Create(ctx, order); err != nil {
		return PayOnDeliveryResult{}, fmt.Errorf("create order %s: %w", order.ID, err)
	}
	h.deps.publish(ctx, order, domain.StatusPendingCheckout)

	return PayOnDeliveryResult{Order: order, PreAuthDegraded: check.Degraded}, nil
}
