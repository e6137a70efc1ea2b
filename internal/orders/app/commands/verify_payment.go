package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

// ErrAmountMismatch means the gateway charged a different amount than the order total.
var ErrAmountMismatch = errors.New("verified amount does not match order total")

// VerifyPaymentCommand verifies a gateway reference. References that belong to an order confirm it;
// any other reference is treated as a card-link charge.
type VerifyPaymentCommand struct {
	Reference string
	Email     string
}

func (c VerifyPaymentCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("reference", c.Reference), slog.String("email", c.Email)}
}

type VerifyPaymentResult struct {
	Succeeded        bool                   `json:"succeeded"`
	Status           string                 `json:"status"`
	Message          string                 `json:"message,omitempty"`
	TransactionID    string                 `json:"transactionId,omitempty"`
	Authorization    *gateway.Authorization `json:"authorization,omitempty"`
	Order            *domain.Order          `json:"order,omitempty"`
	AlreadyConfirmed bool                   `json:"alreadyConfirmed,omitempty"`
	CardLinked       bool                   `json:"cardLinked,omitempty"`
}

func (r VerifyPaymentResult) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.Bool("succeeded", r.Succeeded), slog.String("gateway_status", r.Status)}
	if r.Order != nil {
		attrs = append(attrs, slog.String("order_id", r.Order.ID), slog.String("order_status", string(r.Order.Status)))
	}
	return attrs
}

type VerifyPaymentHandler struct {
	deps Dependencies
}

func NewVerifyPaymentHandler(deps Dependencies) *VerifyPaymentHandler {
	return &VerifyPaymentHandler{deps: deps.withDefaults()}
}

func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (VerifyPaymentResult, error) {
	ref := strings.TrimSpace(cmd.Reference)
	if ref == "" {
		return VerifyPaymentResult{}, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}

	order, err := h.deps.Orders.GetByReference(ctx, ref)
	switch {
	case isNotFound(err):
		return h.verifyCardLink(ctx, ref, cmd.Email)
	case err != nil:
		return VerifyPaymentResult{}, fmt.Errorf("load order by reference %s: %w", ref, err)
	}
	if cmd.Email != "" && !order.IsOwnedBy(cmd.Email) {
		return VerifyPaymentResult{}, fmt.Errorf("order for reference %s: %w", ref, errNotOwned)
	}
	return h.confirmOrder(ctx, order.ID, ref)
}

func (h *VerifyPaymentHandler) verifyCardLink(ctx context.Context, ref, email string) (VerifyPaymentResult, error) {
	v, err := h.deps.Gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("verify card link %s: %w", ref, err)
	}

	result := VerifyPaymentResult{
		Succeeded:     v.Succeeded,
		Status:        v.Status,
		Message:       v.GatewayResponse,
		TransactionID: v.TransactionID,
		Authorization: v.Authorization,
	}
	if !v.Succeeded || v.Authorization == nil || !v.Authorization.Reusable || email == "" {
		return result, nil
	}

	if _, err := h.deps.linkAuthorization(ctx, email, *v.Authorization); err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("link card from %s: %w", ref, err)
	}
	result.CardLinked = true
	return result, nil
}

func (h *VerifyPaymentHandler) confirmOrder(ctx context.Context, orderID, ref string) (VerifyPaymentResult, error) {
	unlock, err := h.deps.Locker.Lock(ctx, lockKey(orderID))
	if err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := h.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("reload order %s: %w", orderID, err)
	}

	if order.PaymentMethod == domain.PaymentPayNow && order.TransactionID != "" && order.Status != domain.StatusPendingCheckout {
		return VerifyPaymentResult{
			Succeeded:        true,
			Status:           "success",
			TransactionID:    order.TransactionID,
			Order:            order,
			AlreadyConfirmed: true,
		}, nil
	}
	if !domain.CanTransition(order.Status, domain.StatusConfirmed) || order.PaymentMethod != domain.PaymentPayNow {
		return VerifyPaymentResult{}, &domain.TransitionError{From: order.Status, To: domain.StatusConfirmed}
	}

	v, err := h.deps.Gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("verify payment for order %s: %w", order.ID, err)
	}

	result := VerifyPaymentResult{
		Succeeded:     v.Succeeded,
		Status:        v.Status,
		Message:       v.GatewayResponse,
		TransactionID: v.TransactionID,
		Authorization: v.Authorization,
		Order:         order,
	}
	if !v.Succeeded {
		return result, nil
	}
	if v.AmountUnits != order.TotalMinor {
		return VerifyPaymentResult{}, fmt.Errorf("order %s: %w: charged %d, expected %d",
			order.ID, ErrAmountMismatch, v.AmountUnits, order.TotalMinor)
	}

	from := order.Status
	if err := order.Confirm(v.TransactionID, h.deps.Now()); err != nil {
		return VerifyPaymentResult{}, err
	}
	if err := h.deps.Orders.Update(ctx, *order, from); err != nil {
		return VerifyPaymentResult{}, fmt.Errorf("confirm order %s: %w", order.ID, err)
	}
	h.deps.publish(ctx, *order, from)

	result.Order = order
	return result, nil
}
