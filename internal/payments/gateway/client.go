// Package gateway is the only component that talks to the external payment gateway.
// It speaks the gateway's {status, message, data} JSON envelope and maps every failure
// to ErrUnavailable or ErrRejected. Nothing here retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	OpInitialize         = "initialize"
	OpVerify             = "verify"
	OpCheckAuthorization = "check_authorization"
	OpCharge             = "charge_authorization"
	OpRefund             = "refund"
	OpFindCustomer       = "find_customer"
	OpCreateCustomer     = "create_customer"
	OpUpdateCustomer     = "update_customer"

	outcomeSuccess     = "success"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeDegraded    = "degraded"

	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
	statusSuccess   = "success"
)

type Client struct {
	baseURL    string
	secretKey  string
	currency   string
	preAuth    map[string]struct{}
	httpClient *http.Client
	metrics    *Metrics
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("gateway secret key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	preAuth := make(map[string]struct{}, len(cfg.PreAuthCurrencies))
	for _, cur := range cfg.PreAuthCurrencies {
		if cur = strings.ToUpper(strings.TrimSpace(cur)); cur != "" {
			preAuth[cur] = struct{}{}
		}
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		currency:  strings.ToUpper(cfg.Currency),
		preAuth:   preAuth,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authorizationData struct {
	AuthorizationCode string `json:"authorization_code"`
	Last4             string `json:"last4"`
	ExpMonth          string `json:"exp_month"`
	ExpYear           string `json:"exp_year"`
	Brand             string `json:"brand"`
	Reusable          bool   `json:"reusable"`
}

type customerData struct {
	CustomerCode string `json:"customer_code"`
	Email        string `json:"email"`
}

type transactionData struct {
	ID              json.Number        `json:"id"`
	Status          string             `json:"status"`
	Reference       string             `json:"reference"`
	Amount          int64              `json:"amount"`
	Currency        string             `json:"currency"`
	GatewayResponse string             `json:"gateway_response"`
	Authorization   *authorizationData `json:"authorization"`
	Customer        *customerData      `json:"customer"`
}

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountUnits,
		"currency":  c.currencyOr(req.Currency),
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if req.Split != nil {
		body["split"] = req.Split
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if _, err := c.do(ctx, OpInitialize, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return InitializeResult{}, err
	}

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return InitializeResult{
		Reference:        ref,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

// VerifyTransaction only reports Succeeded when the gateway explicitly marks the transaction as a success.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (VerifyResult, error) {
	var data transactionData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if _, err := c.do(ctx, OpVerify, http.MethodGet, path, nil, &data); err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{
		Succeeded:       data.Status == statusSuccess,
		Status:          data.Status,
		Reference:       data.Reference,
		TransactionID:   data.ID.String(),
		AmountUnits:     data.Amount,
		Currency:        data.Currency,
		GatewayResponse: data.GatewayResponse,
	}
	if data.Customer != nil {
		result.CustomerCode = data.Customer.CustomerCode
	}
	if auth := data.Authorization; auth != nil && auth.AuthorizationCode != "" {
		result.Authorization = &Authorization{
			Code:     auth.AuthorizationCode,
			Last4:    auth.Last4,
			ExpMonth: auth.ExpMonth,
			ExpYear:  auth.ExpYear,
			Brand:    auth.Brand,
			Reusable: auth.Reusable,
		}
	}
	return result, nil
}

// CheckAuthorization asks the gateway whether a saved authorization can cover an amount.
// Currencies the gateway cannot pre-authorize skip the call and come back Approved and Degraded.
func (c *Client) CheckAuthorization(ctx context.Context, req CheckAuthorizationRequest) (CheckAuthorizationResult, error) {
	currency := c.currencyOr(req.Currency)
	if _, ok := c.preAuth[currency]; !ok {
		c.logger.WarnContext(ctx, "pre-authorization not supported for currency, skipping check",
			slog.String("currency", currency),
			slog.Int64("amount_units", req.AmountUnits),
		)
		c.metrics.ObserveRequest(OpCheckAuthorization, outcomeDegraded, 0)
		return CheckAuthorizationResult{
			Approved: true,
			Degraded: true,
			Message:  fmt.Sprintf("pre-authorization unavailable for %s", currency),
		}, nil
	}

	body := map[string]any{
		"email":              req.Email,
		"amount":             req.AmountUnits,
		"authorization_code": req.AuthorizationCode,
		"currency":           currency,
	}
	msg, err := c.do(ctx, OpCheckAuthorization, http.MethodPost, "/transaction/check_authorization", body, nil)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return CheckAuthorizationResult{Approved: false, Message: Message(err)}, nil
		}
		return CheckAuthorizationResult{}, err
	}
	return CheckAuthorizationResult{Approved: true, Message: msg}, nil
}

func (c *Client) ChargeAuthorization(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body := map[string]any{
		"email":              req.Email,
		"amount":             req.AmountUnits,
		"authorization_code": req.AuthorizationCode,
		"reference":          req.Reference,
		"currency":           c.currencyOr(req.Currency),
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if req.Split != nil {
		body["split"] = req.Split
	}

	var data transactionData
	msg, err := c.do(ctx, OpCharge, http.MethodPost, "/transaction/charge_authorization", body, &data)
	if err != nil {
		return ChargeResult{}, err
	}

	result := ChargeResult{
		Succeeded:     data.Status == statusSuccess,
		Status:        data.Status,
		TransactionID: data.ID.String(),
		Reference:     data.Reference,
		Message:       data.GatewayResponse,
	}
	if result.Message == "" {
		result.Message = msg
	}
	if result.Reference == "" {
		result.Reference = req.Reference
	}
	return result, nil
}

// Refund only acknowledges the request; money movement completes out of band.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	body := map[string]any{
		"transaction":   req.TransactionID,
		"amount":        req.AmountUnits,
		"merchant_note": req.Reason,
	}

	var data struct {
		Status string `json:"status"`
	}
	if _, err := c.do(ctx, OpRefund, http.MethodPost, "/refund", body, &data); err != nil {
		return RefundResult{}, err
	}
	return RefundResult{Accepted: true, Status: data.Status}, nil
}

// FindOrCreateCustomer looks the customer up by email before creating one, so repeated calls never duplicate.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email string) (Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Customer{}, rejected(OpFindCustomer, 0, "email is required")
	}

	var found []customerData
	if _, err := c.do(ctx, OpFindCustomer, http.MethodGet, "/customer?email="+url.QueryEscape(email), nil, &found); err != nil {
		return Customer{}, err
	}
	for _, cust := range found {
		if strings.EqualFold(cust.Email, email) && cust.CustomerCode != "" {
			return Customer{Code: cust.CustomerCode, Email: cust.Email}, nil
		}
	}

	var created customerData
	if _, err := c.do(ctx, OpCreateCustomer, http.MethodPost, "/customer", map[string]any{"email": email}, &created); err != nil {
		return Customer{}, err
	}
	return Customer{Code: created.CustomerCode, Email: created.Email}, nil
}

func (c *Client) AttachAuthorization(ctx context.Context, customerCode, authorizationCode string) error {
	if customerCode == "" || authorizationCode == "" {
		return rejected(OpUpdateCustomer, 0, "customer code and authorization code are required")
	}
	body := map[string]any{
		"metadata": map[string]any{"authorization_code": authorizationCode},
	}
	_, err := c.do(ctx, OpUpdateCustomer, http.MethodPut, "/customer/"+url.PathEscape(customerCode), body, nil)
	return err
}

func (c *Client) currencyOr(currency string) string {
	if currency = strings.ToUpper(strings.TrimSpace(currency)); currency != "" {
		return currency
	}
	return c.currency
}

// do sends one request and decodes data into out. It returns the envelope message on success.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (msg string, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(op, outcomeOf(err), time.Since(start))
	}()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("gateway %s: encode request: %w", op, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return "", fmt.Errorf("gateway %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", unavailable(op, 0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", unavailable(op, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", unavailable(op, resp.StatusCode, env.Message, nil)
	case decodeErr != nil && resp.StatusCode < http.StatusBadRequest:
		return "", unavailable(op, resp.StatusCode, "", fmt.Errorf("decode response: %w", decodeErr))
	case resp.StatusCode >= http.StatusBadRequest || !env.Status:
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", rejected(op, resp.StatusCode, message)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", unavailable(op, resp.StatusCode, env.Message, fmt.Errorf("decode data: %w", err))
		}
	}
	return env.Message, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrRejected):
		return outcomeRejected
	default:
		return outcomeUnavailable
	}
}
