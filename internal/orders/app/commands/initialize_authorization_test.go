package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
	"github.com/JulesNsenda/chakucart/internal/payments/reference"
)

func TestInitializeAuthorization(t *testing.T) {
	t.Run("uses the configured card link amount by default", func(t *testing.T) {
		f := newFixture(t)
		var got gateway.InitializeRequest
		f.gateway.initializeFn = func(_ context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error) {
			got = req
			return gateway.InitializeResult{Reference: req.Reference, AuthorizationURL: "https://pay/link", AccessCode: "code"}, nil
		}
		handler := commands.NewInitializeAuthorizationHandler(f.deps)

		res, err := handler.Handle(context.Background(), commands.InitializeAuthorizationCommand{Email: " ada@example.com "})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if res.AmountUnits != 100 || got.AmountUnits != 100 {
			t.Errorf("expected amount 100, got result %d request %d", res.AmountUnits, got.AmountUnits)
		}
		if !reference.HasPrefix(res.Reference, reference.PrefixAuthorization) {
			t.Errorf("expected AUTH reference, got %s", res.Reference)
		}
		if got.Email != "ada@example.com" || got.Currency != "ZAR" {
			t.Errorf("unexpected request: %+v", got)
		}
		if got.Split != nil {
			t.Error("card link charge must not be split")
		}
		if got.Metadata["purpose"] != "card_link" {
			t.Errorf("expected card_link purpose, got %v", got.Metadata)
		}
		if res.AuthorizationURL != "https://pay/link" {
			t.Errorf("unexpected authorization url %s", res.AuthorizationURL)
		}
	})

	t.Run("honours an explicit amount", func(t *testing.T) {
		f := newFixture(t)
		handler := commands.NewInitializeAuthorizationHandler(f.deps)

		res, err := handler.Handle(context.Background(), commands.InitializeAuthorizationCommand{Email: "ada@example.com", AmountUnits: 500})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.AmountUnits != 500 {
			t.Errorf("expected amount 500, got %d", res.AmountUnits)
		}
	})

	t.Run("rejects an invalid email without calling the gateway", func(t *testing.T) {
		f := newFixture(t)
		handler := commands.NewInitializeAuthorizationHandler(f.deps)

		_, err := handler.Handle(context.Background(), commands.InitializeAuthorizationCommand{Email: "not-an-email"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got: %v", err)
		}
		if f.gateway.count(gateway.OpInitialize) != 0 {
			t.Error("gateway must not be called")
		}
	})

	t.Run("propagates gateway failure", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.initializeFn = func(context.Context, gateway.InitializeRequest) (gateway.InitializeResult, error) {
			return gateway.InitializeResult{}, gateway.ErrUnavailable
		}
		handler := commands.NewInitializeAuthorizationHandler(f.deps)

		_, err := handler.Handle(context.Background(), commands.InitializeAuthorizationCommand{Email: "ada@example.com"})
		if !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected gateway error, got: %v", err)
		}
	})
}
