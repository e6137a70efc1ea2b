package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/split"
)

// Handler is implemented by every checkout command.
type Handler[C, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// PaymentSettings carries the merchant-side configuration the checkout flows need.
type PaymentSettings struct {
	Currency            string
	ProviderFeePercent  decimal.Decimal
	GoodsSubaccount     string
	DeliverySubaccount  string
	CardLinkAmountUnits int64
	CallbackURL         string
}

// Dependencies is shared by all command handlers.
type Dependencies struct {
	Orders    ports.OrderRepository
	Customers ports.CustomerRepository
	Gateway   ports.PaymentGateway
	Locker    ports.Locker
	Events    ports.EventBus
	Logger    *slog.Logger
	Settings  PaymentSettings
	Now       func() time.Time
	NewID     func() string
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Settings.CardLinkAmountUnits <= 0 {
		d.Settings.CardLinkAmountUnits = 100
	}
	return d
}

func lockKey(orderID string) string {
	return "order:" + orderID
}

// publish never fails the caller; the transition is already persisted.
func (d Dependencies) publish(ctx context.Context, order domain.Order, from domain.OrderStatus) {
	evt := domain.NewOrderEvent(order, from)
	if err := d.Events.Publish(ctx, evt); err != nil {
		d.Logger.WarnContext(ctx, "failed to publish order event",
			"error", err,
			"order_id", order.ID,
			"event_type", evt.Type,
		)
	}
}

// gatewaySplit converts a computed split into sub-account entries.
func (s PaymentSettings) gatewaySplit(sp split.Split) *gateway.Split {
	out := &gateway.Split{Type: "flat", BearerType: "account"}
	for _, share := range sp.Shares {
		code := s.GoodsSubaccount
		if share.Role == split.RoleDeliveryProvider {
			code = s.DeliverySubaccount
		}
		out.Subaccounts = append(out.Subaccounts, gateway.Subaccount{
			Code:              code,
			Share:             share.AmountUnits,
			TransactionCharge: share.TransactionChargeUnits,
		})
	}
	return out
}

func (s PaymentSettings) splitEnabled() bool {
	return s.GoodsSubaccount != "" && s.DeliverySubaccount != ""
}

// computeSplit returns nil when no sub-accounts are configured and the merchant takes the whole charge.
func (d Dependencies) computeSplit(order domain.Order, mode split.Mode) (*gateway.Split, error) {
	if !d.Settings.splitEnabled() {
		return nil, nil
	}
	sp, err := split.Compute(split.FromMinorUnits(order.SubtotalMinor), split.FromMinorUnits(order.ShippingFeeMinor),
		d.Settings.ProviderFeePercent, mode)
	if err != nil {
		return nil, fmt.Errorf("compute split for order %s: %w", order.ID, err)
	}
	if sp, err = sp.WithTax(order.TaxMinor); err != nil {
		return nil, fmt.Errorf("compute split for order %s: %w", order.ID, err)
	}
	return d.Settings.gatewaySplit(sp), nil
}

type CartItem struct {
	ProductRef string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int64
}

// buildItems converts cart lines to minor units and returns their sum.
func buildItems(cart []CartItem) ([]domain.Item, int64, error) {
	if len(cart) == 0 {
		return nil, 0, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	items := make([]domain.Item, 0, len(cart))
	var subtotal int64
	for _, line := range cart {
		if strings.TrimSpace(line.ProductRef) == "" {
			return nil, 0, fmt.Errorf("%w: cart item without product reference", domain.ErrValidation)
		}
		if line.Quantity <= 0 || line.UnitPrice.IsNegative() {
			return nil, 0, fmt.Errorf("%w: cart item %q has an invalid quantity or price", domain.ErrValidation, line.ProductRef)
		}
		item := domain.Item{
			ProductRef:     line.ProductRef,
			Name:           line.Name,
			UnitPriceMinor: split.ToMinorUnits(line.UnitPrice),
			Quantity:       line.Quantity,
		}
		subtotal += item.LineTotalMinor()
		items = append(items, item)
	}
	return items, subtotal, nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email must be valid", domain.ErrValidation)
	}
	return nil
}

// loadOwnedOrder hides orders owned by someone else behind ErrNotFound.
func (d Dependencies) loadOwnedOrder(ctx context.Context, orderID, email string) (*domain.Order, error) {
	order, err := d.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if email != "" && !order.IsOwnedBy(email) {
		return nil, fmt.Errorf("order %s: %w", orderID, errNotOwned)
	}
	return order, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}

var errNotOwned = fmt.Errorf("order belongs to another customer: %w", ports.ErrNotFound)
