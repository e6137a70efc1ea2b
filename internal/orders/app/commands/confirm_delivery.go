package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/reference"
	"github.com/JulesNsenda/chakucart/internal/payments/split"
)

// ErrCaptureMismatch means a settled transaction does not belong to the order being captured.
var ErrCaptureMismatch = errors.New("settled transaction is not the capture of this order")

// ConfirmDeliveryCommand moves an order to Delivered. Pay-on-delivery orders are captured first.
type ConfirmDeliveryCommand struct {
	OrderID           string
	Email             string
	AuthorizationCode string
	Reference         string
}

func (c ConfirmDeliveryCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("order_id", c.OrderID), slog.String("reference", c.Reference)}
}

type ConfirmDeliveryResult struct {
	Order            domain.Order `json:"order"`
	AlreadyDelivered bool         `json:"alreadyDelivered,omitempty"`
	Charged          bool         `json:"charged"`
}

func (r ConfirmDeliveryResult) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("order_id", r.Order.ID),
		slog.Bool("already_delivered", r.AlreadyDelivered),
		slog.Bool("charged", r.Charged),
	}
}

type ConfirmDeliveryHandler struct {
	deps Dependencies
}

func NewConfirmDeliveryHandler(deps Dependencies) *ConfirmDeliveryHandler {
	return &ConfirmDeliveryHandler{deps: deps.withDefaults()}
}

func (h *ConfirmDeliveryHandler) Handle(ctx context.Context, cmd ConfirmDeliveryCommand) (ConfirmDeliveryResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return ConfirmDeliveryResult{}, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	unlock, err := h.deps.Locker.Lock(ctx, lockKey(orderID))
	if err != nil {
		return ConfirmDeliveryResult{}, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := h.deps.loadOwnedOrder(ctx, orderID, cmd.Email)
	if err != nil {
		return ConfirmDeliveryResult{}, err
	}

	if order.Status == domain.StatusDelivered {
		return ConfirmDeliveryResult{Order: *order, AlreadyDelivered: true}, nil
	}
	if !domain.CanTransition(order.Status, domain.StatusDelivered) {
		return ConfirmDeliveryResult{}, &domain.TransitionError{From: order.Status, To: domain.StatusDelivered}
	}

	from := order.Status
	var txID string
	var charged bool
	if order.PaymentMethod == domain.PaymentPayOnDelivery {
		txID, charged, err = h.capture(ctx, order, cmd)
		if err != nil {
			return ConfirmDeliveryResult{}, err
		}
	}

	if err := order.MarkDelivered(txID, h.deps.Now()); err != nil {
		return ConfirmDeliveryResult{}, err
	}
	if err := h.deps.Orders.Update(ctx, *order, from); err != nil {
		if charged {
			h.deps.Logger.ErrorContext(ctx, "order captured but delivery could not be recorded",
				"error", err,
				"order_id", order.ID,
				"capture_reference", order.CaptureReference,
				"transaction_id", txID,
			)
		}
		return ConfirmDeliveryResult{}, fmt.Errorf("record delivery of order %s: %w", order.ID, err)
	}
	h.deps.publish(ctx, *order, from)

	return ConfirmDeliveryResult{Order: *order, Charged: charged}, nil
}

// capture charges the saved card for the order total. The capture reference is persisted before the
// charge so a retry after a lost response verifies the earlier charge instead of charging again.
func (h *ConfirmDeliveryHandler) capture(ctx context.Context, order *domain.Order, cmd ConfirmDeliveryCommand) (string, bool, error) {
	customer, err := h.deps.Customers.GetByEmail(ctx, order.OwnerEmail)
	switch {
	case isNotFound(err):
		return "", false, fmt.Errorf("capture order %s: %w", order.ID, domain.ErrNoLinkedInstrument)
	case err != nil:
		return "", false, fmt.Errorf("load customer %s: %w", order.OwnerEmail, err)
	case !customer.HasLinkedInstrument():
		return "", false, fmt.Errorf("capture order %s: %w", order.ID, domain.ErrNoLinkedInstrument)
	}
	if code := strings.TrimSpace(cmd.AuthorizationCode); code != "" && code != customer.AuthorizationCode {
		return "", false, fmt.Errorf("%w: authorization code does not match the linked card", domain.ErrValidation)
	}

	ref := strings.TrimSpace(cmd.Reference)
	if ref != "" && !reference.HasPrefix(ref, reference.PrefixCapture) {
		return "", false, fmt.Errorf("%w: capture reference must start with %s_", domain.ErrValidation, reference.PrefixCapture)
	}

	if order.CaptureReference != "" {
		v, err := h.deps.Gateway.VerifyTransaction(ctx, order.CaptureReference)
		switch {
		case err == nil && v.Succeeded:
			if err := checkCapture(order, v); err != nil {
				return "", false, err
			}
			h.deps.Logger.InfoContext(ctx, "capture already settled, skipping charge",
				"order_id", order.ID,
				"capture_reference", order.CaptureReference,
			)
			return v.TransactionID, false, nil
		case err != nil && !errors.Is(err, gateway.ErrRejected):
			return "", false, fmt.Errorf("check earlier capture of order %s: %w", order.ID, err)
		}
	} else {
		order.CaptureReference = ref
		if order.CaptureReference == "" {
			order.CaptureReference = reference.Generate(reference.PrefixCapture)
		}
		if err := h.deps.Orders.Update(ctx, *order, order.Status); err != nil {
			return "", false, fmt.Errorf("record capture reference for order %s: %w", order.ID, err)
		}
	}

	gwSplit, err := h.deps.computeSplit(*order, split.ModeTransactionCharge)
	if err != nil {
		return "", false, err
	}

	res, err := h.deps.Gateway.ChargeAuthorization(ctx, gateway.ChargeRequest{
		Email:             order.OwnerEmail,
		AmountUnits:       order.TotalMinor,
		Currency:          order.Currency,
		AuthorizationCode: customer.AuthorizationCode,
		Reference:         order.CaptureReference,
		Metadata:          map[string]any{"order_id": order.ID},
		Split:             gwSplit,
	})
	if err != nil {
		return "", false, fmt.Errorf("capture order %s: %w", order.ID, err)
	}
	if !res.Succeeded {
		return "", false, fmt.Errorf("capture order %s: %w", order.ID, gateway.Rejected(gateway.OpCharge, res.Message))
	}
	return res.TransactionID, true, nil
}

// checkCapture accepts an earlier settled transaction only when it is this order's capture for the full total.
func checkCapture(order *domain.Order, v gateway.VerifyResult) error {
	if !strings.EqualFold(strings.TrimSpace(v.Reference), order.CaptureReference) {
		return fmt.Errorf("capture order %s: %w: verified reference %q", order.ID, ErrCaptureMismatch, v.Reference)
	}
	if v.AmountUnits != order.TotalMinor {
		return fmt.Errorf("capture order %s: %w: charged %d, expected %d",
			order.ID, ErrAmountMismatch, v.AmountUnits, order.TotalMinor)
	}
	return nil
}
