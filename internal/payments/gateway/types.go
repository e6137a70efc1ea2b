package gateway

import (
	"time"
)

type Config struct {
	BaseURL   string
	SecretKey string
	Currency  string
	Timeout   time.Duration
	// PreAuthCurrencies lists currencies for which the gateway supports check_authorization.
	PreAuthCurrencies []string
}

type Subaccount struct {
	Code              string `json:"subaccount"`
	Share             int64  `json:"share"`
	TransactionCharge int64  `json:"transaction_charge,omitempty"`
}

// Split is the dynamic split payload attached to initialize and charge calls.
type Split struct {
	Type        string       `json:"type"`
	BearerType  string       `json:"bearer_type"`
	Subaccounts []Subaccount `json:"subaccounts"`
}

type InitializeRequest struct {
	Email       string
	AmountUnits int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
	Split       *Split
}

type InitializeResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
}

type Authorization struct {
	Code     string `json:"authorizationCode"`
	Last4    string `json:"last4"`
	ExpMonth string `json:"expMonth"`
	ExpYear  string `json:"expYear"`
	Brand    string `json:"brand"`
	Reusable bool   `json:"reusable"`
}

type VerifyResult struct {
	Succeeded       bool
	Status          string
	Reference       string
	TransactionID   string
	AmountUnits     int64
	Currency        string
	GatewayResponse string
	CustomerCode    string
	Authorization   *Authorization
}

type CheckAuthorizationRequest struct {
	Email             string
	AmountUnits       int64
	Currency          string
	AuthorizationCode string
}

type CheckAuthorizationResult struct {
	Approved bool
	// Degraded is set when the currency does not support pre-authorization and the check was skipped.
	Degraded bool
	Message  string
}

type ChargeRequest struct {
	Email             string
	AmountUnits       int64
	Currency          string
	AuthorizationCode string
	Reference         string
	Metadata          map[string]any
	Split             *Split
}

type ChargeResult struct {
	Succeeded     bool
	Status        string
	TransactionID string
	Reference     string
	Message       string
}

type RefundRequest struct {
	TransactionID string
	AmountUnits   int64
	Reason        string
}

type RefundResult struct {
	Accepted bool
	Status   string
}

type Customer struct {
	Code  string
	Email string
}
