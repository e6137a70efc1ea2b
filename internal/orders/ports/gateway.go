package ports

import (
	"context"

	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

// PaymentGateway is the slice of the gateway client the checkout flows depend on.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (gateway.VerifyResult, error)
	CheckAuthorization(ctx context.Context, req gateway.CheckAuthorizationRequest) (gateway.CheckAuthorizationResult, error)
	ChargeAuthorization(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error)
	Refund(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResult, error)
	FindOrCreateCustomer(ctx context.Context, email string) (gateway.Customer, error)
	AttachAuthorization(ctx context.Context, customerCode, authorizationCode string) error
}
