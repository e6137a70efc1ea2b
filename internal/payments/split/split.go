// Package split divides a gross charge between the platform, the goods provider and the delivery provider.
package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode selects how the platform fee is expressed to the gateway.
type Mode string

const (
	// ModeDeduction pays the goods provider its net share; the platform keeps the remainder.
	ModeDeduction Mode = "deduction"
	// ModeTransactionCharge pays the goods provider the full subtotal and charges the fee against that share.
	ModeTransactionCharge Mode = "transaction_charge"
)

// Role identifies a beneficiary of the split.
type Role string

const (
	RoleGoodsProvider    Role = "goods_provider"
	RoleDeliveryProvider Role = "delivery_provider"
)

var (
	// ErrInvalidInput is returned for amounts or fee percentages that cannot be split.
	ErrInvalidInput = errors.New("invalid split input")
	// ErrInvariantViolation signals an unbalanced split. It is a programming error and must never reach the gateway.
	ErrInvariantViolation = errors.New("split invariant violation")
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Share is one beneficiary entry, in minor currency units.
type Share struct {
	Role                   Role  `json:"role"`
	AmountUnits            int64 `json:"amountUnits"`
	TransactionChargeUnits int64 `json:"transactionChargeUnits,omitempty"`
}

// Split is the computed division of one gross amount.
type Split struct {
	Mode             Mode    `json:"mode"`
	GrossUnits       int64   `json:"grossUnits"`
	GoodsUnits       int64   `json:"goodsUnits"`
	DeliveryUnits    int64   `json:"deliveryUnits"`
	PlatformFeeUnits int64   `json:"platformFeeUnits"`
	Shares           []Share `json:"shares"`
}

// Share returns the entry for role, if present.
func (s Split) Share(role Role) (Share, bool) {
	for _, share := range s.Shares {
		if share.Role == role {
			return share, true
		}
	}
	return Share{}, false
}

// ToMinorUnits converts a display amount to minor units, rounding half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a display amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}

// Compute splits subtotal + shippingFee. providerFeePercent is the platform cut of the subtotal,
// e.g. 12.5 for 12.5%. The delivery provider always receives the shipping fee in full.
func Compute(subtotal, shippingFee, providerFeePercent decimal.Decimal, mode Mode) (Split, error) {
	if mode != ModeDeduction && mode != ModeTransactionCharge {
		return Split{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}
	if providerFeePercent.IsNegative() || providerFeePercent.GreaterThanOrEqual(hundred) {
		return Split{}, fmt.Errorf("%w: provider fee percent must be in [0, 100), got %s", ErrInvalidInput, providerFeePercent)
	}

	subtotalUnits := ToMinorUnits(subtotal)
	shippingUnits := ToMinorUnits(shippingFee)
	if subtotalUnits < 1 {
		return Split{}, fmt.Errorf("%w: subtotal must be at least one minor unit, got %s", ErrInvalidInput, subtotal)
	}
	if shippingUnits < 0 {
		return Split{}, fmt.Errorf("%w: shipping fee must not be negative, got %s", ErrInvalidInput, shippingFee)
	}

	providerRate := one.Sub(providerFeePercent.Div(hundred))
	goodsUnits := decimal.NewFromInt(subtotalUnits).Mul(providerRate).Round(0).IntPart()
	if goodsUnits < 1 {
		goodsUnits = 1
	}
	platformFee := subtotalUnits - goodsUnits

	result := Split{
		Mode:             mode,
		GrossUnits:       subtotalUnits + shippingUnits,
		GoodsUnits:       goodsUnits,
		DeliveryUnits:    shippingUnits,
		PlatformFeeUnits: platformFee,
	}

	switch mode {
	case ModeDeduction:
		result.Shares = append(result.Shares, Share{Role: RoleGoodsProvider, AmountUnits: goodsUnits})
	case ModeTransactionCharge:
		result.Shares = append(result.Shares, Share{
			Role:                   RoleGoodsProvider,
			AmountUnits:            subtotalUnits,
			TransactionChargeUnits: platformFee,
		})
	}
	if shippingUnits > 0 {
		result.Shares = append(result.Shares, Share{Role: RoleDeliveryProvider, AmountUnits: shippingUnits})
	}

	if err := result.check(); err != nil {
		return Split{}, err
	}
	return result, nil
}

// WithTax adds taxUnits to the gross and to the goods provider's share. No platform fee is taken on tax.
func (s Split) WithTax(taxUnits int64) (Split, error) {
	if taxUnits < 0 {
		return Split{}, fmt.Errorf("%w: tax must not be negative, got %d", ErrInvalidInput, taxUnits)
	}
	if taxUnits == 0 {
		return s, nil
	}

	out := s
	out.GrossUnits += taxUnits
	out.GoodsUnits += taxUnits
	out.Shares = make([]Share, len(s.Shares))
	copy(out.Shares, s.Shares)
	for i := range out.Shares {
		if out.Shares[i].Role == RoleGoodsProvider {
			out.Shares[i].AmountUnits += taxUnits
		}
	}

	if err := out.check(); err != nil {
		return Split{}, err
	}
	return out, nil
}

func (s Split) check() error {
	if s.GoodsUnits+s.DeliveryUnits+s.PlatformFeeUnits != s.GrossUnits {
		return fmt.Errorf("%w: goods %d + delivery %d + platform %d != gross %d",
			ErrInvariantViolation, s.GoodsUnits, s.DeliveryUnits, s.PlatformFeeUnits, s.GrossUnits)
	}
	if s.PlatformFeeUnits < 0 {
		return fmt.Errorf("%w: negative platform fee %d", ErrInvariantViolation, s.PlatformFeeUnits)
	}

	// Transaction charges come out of the share they are attached to.
	var net int64
	for _, share := range s.Shares {
		if share.AmountUnits < 1 {
			return fmt.Errorf("%w: %s share below one minor unit", ErrInvariantViolation, share.Role)
		}
		net += share.AmountUnits - share.TransactionChargeUnits
	}
	if net+s.PlatformFeeUnits != s.GrossUnits {
		return fmt.Errorf("%w: shares net to %d, gross is %d", ErrInvariantViolation, net, s.GrossUnits)
	}
	return nil
}
