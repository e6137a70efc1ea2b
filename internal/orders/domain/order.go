package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPendingCheckout OrderStatus = "pending_checkout"
	StatusPending         OrderStatus = "pending"
	StatusConfirmed       OrderStatus = "confirmed"
	StatusDelivered       OrderStatus = "delivered"
	StatusRefunded        OrderStatus = "refunded"
)

// transitions is the single authority on legal status changes.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingCheckout: {StatusPending, StatusConfirmed},
	StatusPending:         {StatusDelivered},
	StatusConfirmed:       {StatusDelivered},
	StatusDelivered:       {StatusRefunded},
}

// ParseOrderStatus accepts the canonical lower-case names and the capitalised storefront labels.
func ParseOrderStatus(s string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if normalized == "pendingcheckout" {
		normalized = string(StatusPendingCheckout)
	}
	status := OrderStatus(normalized)
	switch status {
	case StatusPendingCheckout, StatusPending, StatusConfirmed, StatusDelivered, StatusRefunded:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
	}
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod selects when the customer is charged.
type PaymentMethod string

const (
	PaymentPayNow        PaymentMethod = "pay_now"
	PaymentPayOnDelivery PaymentMethod = "pay_on_delivery"
)

// RefundStatus records how a refund was handled.
type RefundStatus string

const (
	RefundProcessed           RefundStatus = "processed"
	RefundPendingManualReview RefundStatus = "pending_manual_review"
)

type Item struct {
	ProductRef     string `json:"productRef"`
	Name           string `json:"name,omitempty"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
	Quantity       int64  `json:"quantity"`
}

func (i Item) LineTotalMinor() int64 {
	return i.UnitPriceMinor * i.Quantity
}

// Order is a checkout owned by one email address. Money is held in minor currency units and is
// fixed once the order leaves PendingCheckout.
type Order struct {
	ID                string        `json:"id"`
	OwnerEmail        string        `json:"ownerEmail"`
	Items             []Item        `json:"items"`
	Currency          string        `json:"currency"`
	SubtotalMinor     int64         `json:"subtotalMinor"`
	ShippingFeeMinor  int64         `json:"shippingFeeMinor"`
	TaxMinor          int64         `json:"taxMinor"`
	TotalMinor        int64         `json:"totalMinor"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	Status            OrderStatus   `json:"status"`
	GatewayReference  string        `json:"gatewayReference,omitempty"`
	TransactionID     string        `json:"transactionId,omitempty"`
	AuthorizationCode string        `json:"authorizationCode,omitempty"`
	CaptureReference  string        `json:"captureReference,omitempty"`
	RefundReason      string        `json:"refundReason,omitempty"`
	RefundStatus      RefundStatus  `json:"refundStatus,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	DeliveredAt       *time.Time    `json:"deliveredAt,omitempty"`
	RefundedAt        *time.Time    `json:"refundedAt,omitempty"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.OwnerEmail) == "" {
		return fmt.Errorf("%w: owner email is required", ErrValidation)
	}
	if !strings.Contains(o.OwnerEmail, "@") {
		return fmt.Errorf("%w: owner email must be valid", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if o.SubtotalMinor <= 0 {
		return fmt.Errorf("%w: subtotal must be positive", ErrValidation)
	}
	if o.ShippingFeeMinor < 0 || o.TaxMinor < 0 {
		return fmt.Errorf("%w: shipping fee and tax must not be negative", ErrValidation)
	}

	var itemsTotal int64
	for _, item := range o.Items {
		if item.Quantity <= 0 || item.UnitPriceMinor < 0 {
			return fmt.Errorf("%w: item %q has an invalid quantity or price", ErrValidation, item.ProductRef)
		}
		itemsTotal += item.LineTotalMinor()
	}
	if itemsTotal != o.SubtotalMinor {
		return fmt.Errorf("%w: items add up to %d, subtotal is %d", ErrValidation, itemsTotal, o.SubtotalMinor)
	}
	if o.TotalMinor != o.SubtotalMinor+o.TaxMinor+o.ShippingFeeMinor {
		return fmt.Errorf("%w: total %d != subtotal %d + tax %d + shipping %d",
			ErrValidation, o.TotalMinor, o.SubtotalMinor, o.TaxMinor, o.ShippingFeeMinor)
	}

	switch o.PaymentMethod {
	case PaymentPayNow, PaymentPayOnDelivery:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, o.PaymentMethod)
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusRefunded:
		return true
	default:
		return false
	}
}

// IsOwnedBy compares emails case-insensitively.
func (o Order) IsOwnedBy(email string) bool {
	return strings.EqualFold(strings.TrimSpace(o.OwnerEmail), strings.TrimSpace(email))
}

// AwaitDelivery moves a pay-on-delivery checkout to Pending. No money moves.
func (o *Order) AwaitDelivery(authorizationCode string, now time.Time) error {
	if !CanTransition(o.Status, StatusPending) {
		return &TransitionError{From: o.Status, To: StatusPending}
	}
	if o.PaymentMethod != PaymentPayOnDelivery {
		return fmt.Errorf("%w: %s order cannot await delivery", ErrValidation, o.PaymentMethod)
	}
	if strings.TrimSpace(authorizationCode) == "" {
		return ErrNoLinkedInstrument
	}
	o.AuthorizationCode = authorizationCode
	return o.transition(StatusPending, now)
}

// Confirm records a verified pay-now charge.
func (o *Order) Confirm(transactionID string, now time.Time) error {
	if strings.TrimSpace(transactionID) == "" {
		return fmt.Errorf("%w: transaction id is required to confirm", ErrValidation)
	}
	if err := o.transition(StatusConfirmed, now); err != nil {
		return err
	}
	o.TransactionID = transactionID
	return nil
}

// MarkDelivered records delivery. For pay-on-delivery orders transactionID is the capture charge.
func (o *Order) MarkDelivered(transactionID string, now time.Time) error {
	if o.PaymentMethod == PaymentPayOnDelivery && strings.TrimSpace(transactionID) == "" {
		return fmt.Errorf("%w: capture transaction id is required", ErrValidation)
	}
	if err := o.transition(StatusDelivered, now); err != nil {
		return err
	}
	if transactionID != "" {
		o.TransactionID = transactionID
	}
	delivered := now
	o.DeliveredAt = &delivered
	return nil
}

// MarkRefunded records a refund request against a delivered order.
func (o *Order) MarkRefunded(reason string, status RefundStatus, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: refund reason is required", ErrValidation)
	}
	if err := o.transition(StatusRefunded, now); err != nil {
		return err
	}
	o.RefundReason = reason
	o.RefundStatus = status
	refunded := now
	o.RefundedAt = &refunded
	return nil
}

func (o *Order) transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition  = errors.New("invalid order transition")
	ErrNoLinkedInstrument = errors.New("no linked payment instrument")
	ErrValidation         = errors.New("validation failed")
)

// TransitionError names the current and requested states of a rejected transition.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
