package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

// SaveAuthorizationCommand links a reusable authorization to the customer identified by Email.
type SaveAuthorizationCommand struct {
	Email             string
	AuthorizationCode string
	Last4             string
	Brand             string
	ExpMonth          string
	ExpYear           string
}

func (c SaveAuthorizationCommand) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("email", c.Email), slog.String("card_last4", c.Last4)}
}

type SaveAuthorizationHandler struct {
	deps Dependencies
}

func NewSaveAuthorizationHandler(deps Dependencies) *SaveAuthorizationHandler {
	return &SaveAuthorizationHandler{deps: deps.withDefaults()}
}

func (h *SaveAuthorizationHandler) Handle(ctx context.Context, cmd SaveAuthorizationCommand) (domain.Customer, error) {
	if err := validateEmail(cmd.Email); err != nil {
		return domain.Customer{}, err
	}
	if strings.TrimSpace(cmd.AuthorizationCode) == "" {
		return domain.Customer{}, fmt.Errorf("%w: authorization code is required", domain.ErrValidation)
	}

	return h.deps.linkAuthorization(ctx, cmd.Email, gateway.Authorization{
		Code:     strings.TrimSpace(cmd.AuthorizationCode),
		Last4:    cmd.Last4,
		Brand:    cmd.Brand,
		ExpMonth: cmd.ExpMonth,
		ExpYear:  cmd.ExpYear,
		Reusable: true,
	})
}

// linkAuthorization registers the customer with the gateway, attaches the code there and mirrors it locally.
func (d Dependencies) linkAuthorization(ctx context.Context, email string, auth gateway.Authorization) (domain.Customer, error) {
	email = domain.NormalizeEmail(email)

	gwCustomer, err := d.Gateway.FindOrCreateCustomer(ctx, email)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("find or create customer %s: %w", email, err)
	}
	if err := d.Gateway.AttachAuthorization(ctx, gwCustomer.Code, auth.Code); err != nil {
		return domain.Customer{}, fmt.Errorf("attach authorization to customer %s: %w", gwCustomer.Code, err)
	}

	now := d.Now()
	customer := domain.Customer{Email: email, CreatedAt: now}
	existing, err := d.Customers.GetByEmail(ctx, email)
	switch {
	case err == nil:
		customer = *existing
	case !isNotFound(err):
		return domain.Customer{}, fmt.Errorf("load customer %s: %w", email, err)
	}

	customer.CustomerCode = gwCustomer.Code
	customer.AuthorizationCode = auth.Code
	customer.CardLast4 = auth.Last4
	customer.CardBrand = auth.Brand
	customer.CardExpMonth = auth.ExpMonth
	customer.CardExpYear = auth.ExpYear
	customer.UpdatedAt = now

	if err := d.Customers.Save(ctx, customer); err != nil {
		return domain.Customer{}, fmt.Errorf("save customer %s: %w", email, err)
	}
	return customer, nil
}
