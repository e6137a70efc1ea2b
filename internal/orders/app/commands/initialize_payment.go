package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/reference"
	"github.com/JulesNsenda/chakucart/internal/payments/split"
)

// InitializePaymentCommand opens a pay-now checkout. Subtotal is optional and, when given, must match the cart.
type InitializePaymentCommand struct {
	Email    string
	Cart     []CartItem
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
}

func (c InitializePaymentCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("email", c.Email),
		slog.Int("cart_items", len(c.Cart)),
		slog.String("shipping", c.Shipping.String()),
	}
}

type InitializePaymentResult struct {
	Order            domain.Order `json:"order"`
	Reference        string       `json:"reference"`
	AuthorizationURL string       `json:"authorizationUrl"`
	AccessCode       string       `json:"accessCode"`
}

func (r InitializePaymentResult) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("order_id", r.Order.ID), slog.String("reference", r.Reference)}
}

type InitializePaymentHandler struct {
	deps Dependencies
}

func NewInitializePaymentHandler(deps Dependencies) *InitializePaymentHandler {
	return &InitializePaymentHandler{deps: deps.withDefaults()}
}

func (h *InitializePaymentHandler) Handle(ctx context.Context, cmd InitializePaymentCommand) (InitializePaymentResult, error) {
	order, err := newCheckoutOrder(h.deps, cmd.Email, cmd.Cart, cmd.Shipping, cmd.Tax, domain.PaymentPayNow)
	if err != nil {
		return InitializePaymentResult{}, err
	}
	if !cmd.Subtotal.IsZero() && split.ToMinorUnits(cmd.Subtotal) != order.SubtotalMinor {
		return InitializePaymentResult{}, fmt.Errorf("%w: subtotal %s does not match cart total %s",
			domain.ErrValidation, cmd.Subtotal, split.FromMinorUnits(order.SubtotalMinor))
	}
	order.GatewayReference = reference.Generate(reference.PrefixOrder)

	gwSplit, err := h.deps.computeSplit(order, split.ModeDeduction)
	if err != nil {
		return InitializePaymentResult{}, err
	}

	if err := h.deps.Orders.Create(ctx, order); err != nil {
		return InitializePaymentResult{}, fmt.Errorf("create order %s: %w", order.ID, err)
	}

	res, err := h.deps.Gateway.InitializeTransaction(ctx, gateway.InitializeRequest{
		Email:       order.OwnerEmail,
		AmountUnits: order.TotalMinor,
		Currency:    order.Currency,
		Reference:   order.GatewayReference,
		CallbackURL: h.deps.Settings.CallbackURL,
		Metadata:    map[string]any{"order_id": order.ID},
		Split:       gwSplit,
	})
	if err != nil {
		return InitializePaymentResult{}, fmt.Errorf("initialize payment for order %s: %w", order.ID, err)
	}

	h.deps.publish(ctx, order, "")

	return InitializePaymentResult{
		Order:            order,
		Reference:        res.Reference,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
	}, nil
}

// newCheckoutOrder builds a validated PendingCheckout order with money fixed in minor units.
func newCheckoutOrder(deps Dependencies, email string, cart []CartItem, shipping, tax decimal.Decimal, method domain.PaymentMethod) (domain.Order, error) {
	if err := validateEmail(email); err != nil {
		return domain.Order{}, err
	}
	items, subtotal, err := buildItems(cart)
	if err != nil {
		return domain.Order{}, err
	}

	shippingUnits := split.ToMinorUnits(shipping)
	taxUnits := split.ToMinorUnits(tax)
	now := deps.Now()

	order := domain.Order{
		ID:               deps.NewID(),
		OwnerEmail:       domain.NormalizeEmail(email),
		Items:            items,
		Currency:         strings.ToUpper(deps.Settings.Currency),
		SubtotalMinor:    subtotal,
		ShippingFeeMinor: shippingUnits,
		TaxMinor:         taxUnits,
		TotalMinor:       subtotal + shippingUnits + taxUnits,
		PaymentMethod:    method,
		Status:           domain.StatusPendingCheckout,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
