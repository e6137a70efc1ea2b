package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/app/queries"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

const idempotencyHeader = "Idempotency-Key"

// Service is the checkout API consumed by the handlers. *app.Service implements it.
type Service interface {
	InitializeAuthorization(ctx context.Context, cmd commands.InitializeAuthorizationCommand) (commands.InitializeAuthorizationResult, error)
	InitializePayment(ctx context.Context, cmd commands.InitializePaymentCommand) (commands.InitializePaymentResult, error)
	VerifyPayment(ctx context.Context, cmd commands.VerifyPaymentCommand) (commands.VerifyPaymentResult, error)
	SaveAuthorization(ctx context.Context, cmd commands.SaveAuthorizationCommand) (domain.Customer, error)
	PayOnDelivery(ctx context.Context, cmd commands.PayOnDeliveryCommand) (commands.PayOnDeliveryResult, error)
	ConfirmDelivery(ctx context.Context, cmd commands.ConfirmDeliveryCommand) (commands.ConfirmDeliveryResult, error)
	RequestRefund(ctx context.Context, cmd commands.RequestRefundCommand) (commands.RequestRefundResult, error)
	GetOrder(ctx context.Context, query queries.GetOrderQuery) (*domain.Order, error)
	ListPendingOrders(ctx context.Context, query queries.ListPendingOrdersQuery) ([]domain.Order, error)
	GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error)
	SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error
}

// Handler exposes the storefront checkout endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register binds the checkout routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/initialize-authorization", h.initializeAuthorization)
	r.Post("/initialize-transaction", h.initializeTransaction)
	r.Post("/verify-transaction", h.verifyTransaction)
	r.Post("/save-authorization", h.saveAuthorization)
	r.Post("/pay-on-delivery", h.payOnDelivery)
	r.Post("/confirm-delivery", h.confirmDelivery)
	r.Post("/request-refund", h.requestRefund)
	r.Post("/request-pod-refund", h.requestPODRefund)
	r.Get("/pending-orders", h.listPendingOrders)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *Handler) initializeAuthorization(w http.ResponseWriter, r *http.Request) {
	var req initializeAuthorizationRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.InitializeAuthorization(r.Context(), req.command())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) initializeTransaction(w http.ResponseWriter, r *http.Request) {
	var req initializeTransactionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.idempotent(w, r, "initialize-transaction", req.Email, req, func(ctx context.Context) (int, envelope, string) {
		res, err := h.service.InitializePayment(ctx, req.command())
		if err != nil {
			status, body := errorResponse(err)
			return status, body, ""
		}
		return http.StatusCreated, success(res), res.Order.ID
	})
}

func (h *Handler) verifyTransaction(w http.ResponseWriter, r *http.Request) {
	var req verifyTransactionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.VerifyPayment(r.Context(), commands.VerifyPaymentCommand{
		Reference: req.Reference,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Succeeded {
		message := res.Message
		if message == "" {
			message = fmt.Sprintf("transaction %s", res.Status)
		}
		writeJSON(w, http.StatusPaymentRequired, envelope{Status: statusFailed, Message: message, Data: res})
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) saveAuthorization(w http.ResponseWriter, r *http.Request) {
	var req saveAuthorizationRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	customer, err := h.service.SaveAuthorization(r.Context(), commands.SaveAuthorizationCommand{
		Email:             req.Email,
		AuthorizationCode: req.AuthorizationCode,
		Last4:             req.Last4,
		Brand:             req.Brand,
		ExpMonth:          req.ExpMonth,
		ExpYear:           req.ExpYear,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, customer)
}

func (h *Handler) payOnDelivery(w http.ResponseWriter, r *http.Request) {
	var req payOnDeliveryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.idempotent(w, r, "pay-on-delivery", req.Email, req, func(ctx context.Context) (int, envelope, string) {
		res, err := h.service.PayOnDelivery(ctx, req.command())
		if err != nil {
			status, body := errorResponse(err)
			return status, body, ""
		}
		return http.StatusCreated, success(res), res.Order.ID
	})
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	var req confirmDeliveryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.ConfirmDelivery(r.Context(), commands.ConfirmDeliveryCommand{
		OrderID:           req.OrderID,
		Email:             req.Email,
		AuthorizationCode: req.AuthorizationCode,
		Reference:         req.Reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req requestRefundRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.RequestRefund(r.Context(), commands.RequestRefundCommand{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) requestPODRefund(w http.ResponseWriter, r *http.Request) {
	var req requestPODRefundRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.RequestRefund(r.Context(), commands.RequestRefundCommand{
		OrderID:       req.OrderID,
		Email:         req.Email,
		Reason:        req.Reason,
		PaymentMethod: domain.PaymentPayOnDelivery,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listPendingOrders(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := queries.ListPendingOrdersQuery{Email: params.Get("email")}

	if pageParam := params.Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			query.Page = page
		}
	}

	if pageSizeParam := params.Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			query.PageSize = pageSize
		}
	}

	if beforeParam := params.Get("before"); beforeParam != "" {
		before, err := time.Parse(time.RFC3339, beforeParam)
		if err != nil {
			writeError(w, fmt.Errorf("%w: before must be an RFC3339 timestamp", domain.ErrValidation))
			return
		}
		query.Before = &before
	}

	orders, err := h.service.ListPendingOrders(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), queries.GetOrderQuery{
		OrderID: chi.URLParam(r, "id"),
		Email:   r.URL.Query().Get("email"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"order": order})
}

// idempotent replays the stored response for a repeated Idempotency-Key. Keys are scoped by route and
// customer email. Server errors are not stored so the client can retry them with the same key.
func (h *Handler) idempotent(
	w http.ResponseWriter,
	r *http.Request,
	route, email string,
	request any,
	run func(ctx context.Context) (status int, body envelope, orderID string),
) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))

	var key, fingerprint string
	if clientKey != "" {
		key = ports.IdempotencyKey(route, email, clientKey)
		fingerprint = fingerprintOf(request)

		stored, err := h.service.GetIdempotentResponse(ctx, key)
		if err != nil {
			h.logger.ErrorContext(ctx, "idempotency lookup failed", "error", err, "route", route)
			writeError(w, err)
			return
		}
		if stored != nil {
			if stored.Fingerprint != "" && stored.Fingerprint != fingerprint {
				writeError(w, fmt.Errorf("%w: idempotency key was already used for a different request", ports.ErrConflict))
				return
			}
			for name, values := range restoreHeaders() {
				for _, value := range values {
					w.Header().Add(name, value)
				}
			}
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	status, body, orderID := run(ctx)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		writeError(w, err)
		return
	}

	if key != "" && status < http.StatusInternalServerError {
		stored := ports.StoredResponse{StatusCode: status, Body: buf.Bytes(), OrderID: orderID, Fingerprint: fingerprint}
		if err := h.service.SaveIdempotentResponse(ctx, key, stored); err != nil {
			h.logger.ErrorContext(ctx, "idempotency save failed", "error", err, "route", route, "order_id", orderID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fingerprintOf hashes the decoded request. Field order is fixed by the struct, so equal requests
// hash equally regardless of how the client ordered its JSON keys.
func fingerprintOf(request any) string {
	raw, err := json.Marshal(request)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
