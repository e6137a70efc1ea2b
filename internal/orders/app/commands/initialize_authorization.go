package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/reference"
)

// InitializeAuthorizationCommand starts a nominal charge whose only purpose is to link a reusable card.
type InitializeAuthorizationCommand struct {
	Email       string
	AmountUnits int64
}

func (c InitializeAuthorizationCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("email", c.Email), slog.Int64("amount_units", c.AmountUnits)}
}

type InitializeAuthorizationResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	AmountUnits      int64  `json:"amountUnits"`
}

func (r InitializeAuthorizationResult) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("reference", r.Reference)}
}

type InitializeAuthorizationHandler struct {
	deps Dependencies
}

func NewInitializeAuthorizationHandler(deps Dependencies) *InitializeAuthorizationHandler {
	return &InitializeAuthorizationHandler{deps: deps.withDefaults()}
}

func (h *InitializeAuthorizationHandler) Handle(ctx context.Context, cmd InitializeAuthorizationCommand) (InitializeAuthorizationResult, error) {
	if err := validateEmail(cmd.Email); err != nil {
		return InitializeAuthorizationResult{}, err
	}

	amount := cmd.AmountUnits
	if amount <= 0 {
		amount = h.deps.Settings.CardLinkAmountUnits
	}

	ref := reference.Generate(reference.PrefixAuthorization)
	res, err := h.deps.Gateway.InitializeTransaction(ctx, gateway.InitializeRequest{
		Email:       strings.TrimSpace(cmd.Email),
		AmountUnits: amount,
		Currency:    h.deps.Settings.Currency,
		Reference:   ref,
		CallbackURL: h.deps.Settings.CallbackURL,
		Metadata:    map[string]any{"purpose": "card_link"},
	})
	if err != nil {
		return InitializeAuthorizationResult{}, fmt.Errorf("initialize card link %s: %w", ref, err)
	}

	return InitializeAuthorizationResult{
		Reference:        res.Reference,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		AmountUnits:      amount,
	}, nil
}
