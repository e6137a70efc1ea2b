package domain

import (
	"strings"
	"time"
)

// Customer owns at most one saved authorization. Orders only ever copy the code for lookup.
type Customer struct {
	Email             string    `json:"email"`
	CustomerCode      string    `json:"customerCode,omitempty"`
	AuthorizationCode string    `json:"authorizationCode,omitempty"`
	CardLast4         string    `json:"cardLast4,omitempty"`
	CardBrand         string    `json:"cardBrand,omitempty"`
	CardExpMonth      string    `json:"cardExpMonth,omitempty"`
	CardExpYear       string    `json:"cardExpYear,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (c Customer) HasLinkedInstrument() bool {
	return strings.TrimSpace(c.AuthorizationCode) != ""
}

// NormalizeEmail is the key customers and order owners are stored under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
