package ports

import (
	"context"
	"strings"
	"time"
)

// StoredResponse is the first response produced for an idempotency key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
	// Fingerprint identifies the request body that produced the response. A replay with a
	// different fingerprint is a client error, not a retry.
	Fingerprint string
}

// IdempotencyStore remembers responses of order-creating routes so retries do not create a
// second order. Save keeps the first response for a key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, response StoredResponse) error
}

// IdempotencyKey scopes a client-supplied key to one route and one customer, so two shoppers
// reusing the same header value never see each other's orders.
func IdempotencyKey(route, email, clientKey string) string {
	return route + ":" + strings.ToLower(strings.TrimSpace(email)) + ":" + strings.TrimSpace(clientKey)
}

// IdempotencyPurger expires stored responses. Retries are only honoured within the retention window.
type IdempotencyPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}
