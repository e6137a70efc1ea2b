package app

import (
	"context"
	"log/slog"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/app/queries"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/metrics"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

// Service bundles the checkout use cases exposed over the API.
type Service struct {
	idemStore ports.IdempotencyStore

	initializeAuthorization commands.Handler[commands.InitializeAuthorizationCommand, commands.InitializeAuthorizationResult]
	initializePayment       commands.Handler[commands.InitializePaymentCommand, commands.InitializePaymentResult]
	verifyPayment           commands.Handler[commands.VerifyPaymentCommand, commands.VerifyPaymentResult]
	saveAuthorization       commands.Handler[commands.SaveAuthorizationCommand, domain.Customer]
	payOnDelivery           commands.Handler[commands.PayOnDeliveryCommand, commands.PayOnDeliveryResult]
	confirmDelivery         commands.Handler[commands.ConfirmDeliveryCommand, commands.ConfirmDeliveryResult]
	requestRefund           commands.Handler[commands.RequestRefundCommand, commands.RequestRefundResult]

	getOrder          *queries.GetOrderQueryHandler
	listPendingOrders *queries.ListPendingOrdersQueryHandler
}

// NewService wires every command handler behind logging, tracing and metrics.
func NewService(deps commands.Dependencies, idem ports.IdempotencyStore, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	return &Service{
		idemStore: idem,

		initializeAuthorization: commands.NewObservableCommandHandler("InitializeAuthorization",
			commands.NewInitializeAuthorizationHandler(deps), logger, m),
		initializePayment: commands.NewObservableCommandHandler("InitializePayment",
			commands.NewInitializePaymentHandler(deps), logger, m),
		verifyPayment: commands.NewObservableCommandHandler("VerifyPayment",
			commands.NewVerifyPaymentHandler(deps), logger, m),
		saveAuthorization: commands.NewObservableCommandHandler("SaveAuthorization",
			commands.NewSaveAuthorizationHandler(deps), logger, m),
		payOnDelivery: commands.NewObservableCommandHandler("PayOnDelivery",
			commands.NewPayOnDeliveryHandler(deps), logger, m),
		confirmDelivery: commands.NewObservableCommandHandler("ConfirmDelivery",
			commands.NewConfirmDeliveryHandler(deps), logger, m),
		requestRefund: commands.NewObservableCommandHandler("RequestRefund",
			commands.NewRequestRefundHandler(deps), logger, m),

		getOrder:          queries.NewGetOrderQueryHandler(deps.Orders),
		listPendingOrders: queries.NewListPendingOrdersQueryHandler(deps.Orders),
	}
}

func (s *Service) InitializeAuthorization(ctx context.Context, cmd commands.InitializeAuthorizationCommand) (commands.InitializeAuthorizationResult, error) {
	return s.initializeAuthorization.Handle(ctx, cmd)
}

func (s *Service) InitializePayment(ctx context.Context, cmd commands.InitializePaymentCommand) (commands.InitializePaymentResult, error) {
	return s.initializePayment.Handle(ctx, cmd)
}

func (s *Service) VerifyPayment(ctx context.Context, cmd commands.VerifyPaymentCommand) (commands.VerifyPaymentResult, error) {
	return s.verifyPayment.Handle(ctx, cmd)
}

func (s *Service) SaveAuthorization(ctx context.Context, cmd commands.SaveAuthorizationCommand) (domain.Customer, error) {
	return s.saveAuthorization.Handle(ctx, cmd)
}

func (s *Service) PayOnDelivery(ctx context.Context, cmd commands.PayOnDeliveryCommand) (commands.PayOnDeliveryResult, error) {
	return s.payOnDelivery.Handle(ctx, cmd)
}

func (s *Service) ConfirmDelivery(ctx context.Context, cmd commands.ConfirmDeliveryCommand) (commands.ConfirmDeliveryResult, error) {
	return s.confirmDelivery.Handle(ctx, cmd)
}

// RequestRefund handles both the pay-now and the pay-on-delivery refund routes; the order's
// payment method decides whether the gateway is called.
func (s *Service) RequestRefund(ctx context.Context, cmd commands.RequestRefundCommand) (commands.RequestRefundResult, error) {
	return s.requestRefund.Handle(ctx, cmd)
}

// GetOrder retrieves one of the caller's orders.
func (s *Service) GetOrder(ctx context.Context, query queries.GetOrderQuery) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, query)
}

// ListPendingOrders returns the caller's orders awaiting delivery.
func (s *Service) ListPendingOrders(ctx context.Context, query queries.ListPendingOrdersQuery) ([]domain.Order, error) {
	return s.listPendingOrders.Handle(ctx, query)
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
