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

// RequestRefundCommand refunds a delivered order in full. The order is found by OrderID or, failing
// that, by TransactionID. Amount is optional and must equal the order total when present.
// PaymentMethod, when set, restricts the refund to orders paid that way.
type RequestRefundCommand struct {
	OrderID       string
	TransactionID string
	Email         string
	Reason        string
	Amount        *decimal.Decimal
	PaymentMethod domain.PaymentMethod
}

func (c RequestRefundCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("order_id", c.OrderID),
		slog.String("transaction_id", c.TransactionID),
		slog.String("reason", c.Reason),
	}
}

type RequestRefundResult struct {
	Order           domain.Order `json:"order"`
	AlreadyRefunded bool         `json:"alreadyRefunded,omitempty"`
	GatewayStatus   string       `json:"gatewayStatus,omitempty"`
}

func (r RequestRefundResult) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("order_id", r.Order.ID),
		slog.String("refund_status", string(r.Order.RefundStatus)),
		slog.Bool("already_refunded", r.AlreadyRefunded),
	}
}

type RequestRefundHandler struct {
	deps Dependencies
}

func NewRequestRefundHandler(deps Dependencies) *RequestRefundHandler {
	return &RequestRefundHandler{deps: deps.withDefaults()}
}

func (h *RequestRefundHandler) Handle(ctx context.Context, cmd RequestRefundCommand) (RequestRefundResult, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return RequestRefundResult{}, fmt.Errorf("%w: refund reason is required", domain.ErrValidation)
	}

	orderID, err := h.resolveOrderID(ctx, cmd)
	if err != nil {
		return RequestRefundResult{}, err
	}

	unlock, err := h.deps.Locker.Lock(ctx, lockKey(orderID))
	if err != nil {
		return RequestRefundResult{}, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := h.deps.loadOwnedOrder(ctx, orderID, cmd.Email)
	if err != nil {
		return RequestRefundResult{}, err
	}

	if cmd.PaymentMethod != "" && order.PaymentMethod != cmd.PaymentMethod {
		return RequestRefundResult{}, fmt.Errorf("%w: order %s was not paid %s",
			domain.ErrValidation, order.ID, cmd.PaymentMethod)
	}
	if order.Status == domain.StatusRefunded {
		return RequestRefundResult{Order: *order, AlreadyRefunded: true}, nil
	}
	if order.Status != domain.StatusDelivered {
		return RequestRefundResult{}, &domain.TransitionError{From: order.Status, To: domain.StatusRefunded}
	}
	if cmd.Amount != nil && split.ToMinorUnits(*cmd.Amount) != order.TotalMinor {
		return RequestRefundResult{}, fmt.Errorf("%w: only full refunds of %s are supported",
			domain.ErrValidation, split.FromMinorUnits(order.TotalMinor))
	}

	var gatewayStatus string
	refundStatus := domain.RefundPendingManualReview
	if order.PaymentMethod == domain.PaymentPayNow {
		res, err := h.deps.Gateway.Refund(ctx, gateway.RefundRequest{
			TransactionID: order.TransactionID,
			AmountUnits:   order.TotalMinor,
			Reason:        reason,
		})
		if err != nil {
			h.deps.Logger.ErrorContext(ctx, "refund request failed",
				"error", err,
				"order_id", order.ID,
				"transaction_id", order.TransactionID,
			)
			return RequestRefundResult{}, fmt.Errorf("refund order %s: %w", order.ID, err)
		}
		if !res.Accepted {
			return RequestRefundResult{}, fmt.Errorf("refund order %s: %w", order.ID,
				gateway.Rejected(gateway.OpRefund, "refund was not accepted"))
		}
		gatewayStatus = res.Status
		refundStatus = domain.RefundProcessed
	} else {
		h.deps.Logger.InfoContext(ctx, "pay-on-delivery refund queued for manual review",
			"order_id", order.ID,
			"transaction_id", order.TransactionID,
		)
	}

	from := order.Status
	if err := order.MarkRefunded(reason, refundStatus, h.deps.Now()); err != nil {
		return RequestRefundResult{}, err
	}
	if err := h.deps.Orders.Update(ctx, *order, from); err != nil {
		if refundStatus == domain.RefundProcessed {
			h.deps.Logger.ErrorContext(ctx, "refund requested but order could not be updated",
				"error", err,
				"order_id", order.ID,
			)
		}
		return RequestRefundResult{}, fmt.Errorf("record refund of order %s: %w", order.ID, err)
	}
	h.deps.publish(ctx, *order, from)

	return RequestRefundResult{Order: *order, GatewayStatus: gatewayStatus}, nil
}

func (h *RequestRefundHandler) resolveOrderID(ctx context.Context, cmd RequestRefundCommand) (string, error) {
	if id := strings.TrimSpace(cmd.OrderID); id != "" {
		return id, nil
	}
	txID := strings.TrimSpace(cmd.TransactionID)
	if txID == "" {
		return "", fmt.Errorf("%w: order id or transaction id is required", domain.ErrValidation)
	}
	order, err := h.deps.Orders.GetByTransactionID(ctx, txID)
	if err != nil {
		return "", fmt.Errorf("find order for transaction %s: %w", txID, err)
	}
	return order.ID, nil
}
