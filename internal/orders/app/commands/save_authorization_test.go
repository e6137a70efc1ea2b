package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

func TestSaveAuthorization(t *testing.T) {
	t.Run("creates customer and attaches the code at the gateway", func(t *testing.T) {
		f := newFixture(t)
		var attached string
		f.gateway.attachFn = func(_ context.Context, customerCode, authorizationCode string) error {
			attached = customerCode + "/" + authorizationCode
			return nil
		}
		handler := commands.NewSaveAuthorizationHandler(f.deps)

		customer, err := handler.Handle(context.Background(), commands.SaveAuthorizationCommand{
			Email:             "Ada@Example.com",
			AuthorizationCode: " AUTH_new ",
			Last4:             "4081",
			Brand:             "visa",
			ExpMonth:          "12",
			ExpYear:           "2030",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if attached != "CUS_ada@example.com/AUTH_new" {
			t.Errorf("unexpected attach call %q", attached)
		}
		stored, err := f.customers.GetByEmail(context.Background(), "ada@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if stored.AuthorizationCode != "AUTH_new" || stored.CardLast4 != "4081" || stored.CustomerCode != customer.CustomerCode {
			t.Errorf("unexpected stored customer: %+v", stored)
		}
		if !stored.CreatedAt.Equal(fixedNow) {
			t.Errorf("expected created at %v, got %v", fixedNow, stored.CreatedAt)
		}
	})

	t.Run("replaces the previous card and keeps the creation time", func(t *testing.T) {
		f := newFixture(t)
		created := fixedNow.Add(-48 * time.Hour)
		err := f.customers.Save(context.Background(), domain.Customer{
			Email:             "ada@example.com",
			AuthorizationCode: "AUTH_old",
			CardLast4:         "1111",
			CreatedAt:         created,
			UpdatedAt:         created,
		})
		if err != nil {
			t.Fatal(err)
		}
		handler := commands.NewSaveAuthorizationHandler(f.deps)

		customer, err := handler.Handle(context.Background(), commands.SaveAuthorizationCommand{
			Email:             "ada@example.com",
			AuthorizationCode: "AUTH_new",
			Last4:             "4081",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if customer.AuthorizationCode != "AUTH_new" || customer.CardLast4 != "4081" {
			t.Errorf("card was not replaced: %+v", customer)
		}
		if !customer.CreatedAt.Equal(created) || !customer.UpdatedAt.Equal(fixedNow) {
			t.Errorf("unexpected timestamps: created %v updated %v", customer.CreatedAt, customer.UpdatedAt)
		}
	})

	t.Run("requires an authorization code", func(t *testing.T) {
		f := newFixture(t)
		handler := commands.NewSaveAuthorizationHandler(f.deps)

		_, err := handler.Handle(context.Background(), commands.SaveAuthorizationCommand{Email: "ada@example.com", AuthorizationCode: "  "})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got: %v", err)
		}
		if f.gateway.count(gateway.OpFindCustomer) != 0 {
			t.Error("gateway must not be called")
		}
	})

	t.Run("does not store the card when the gateway refuses it", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.attachFn = func(context.Context, string, string) error {
			return gateway.ErrRejected
		}
		handler := commands.NewSaveAuthorizationHandler(f.deps)

		_, err := handler.Handle(context.Background(), commands.SaveAuthorizationCommand{Email: "ada@example.com", AuthorizationCode: "AUTH_x"})
		if !errors.Is(err, gateway.ErrRejected) {
			t.Fatalf("expected rejection, got: %v", err)
		}
		if _, err := f.customers.GetByEmail(context.Background(), "ada@example.com"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected no stored customer, got: %v", err)
		}
	})
}
