package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JulesNsenda/chakucart/internal/orders/app/commands"
	"github.com/JulesNsenda/chakucart/internal/orders/domain"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
	"github.com/JulesNsenda/chakucart/internal/payments/gateway"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
	statusError   = "error"
)

// envelope is the body of every response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(data any) envelope {
	return envelope{Status: statusSuccess, Data: data}
}

// errorResponse maps an error to its HTTP status and body. "failed" marks definitive business
// outcomes and "error" marks infrastructure faults the caller may retry.
func errorResponse(err error) (int, envelope) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, envelope{Status: statusFailed, Message: err.Error()}
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, envelope{Status: statusFailed, Message: "order not found"}
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, ports.ErrConflict),
		errors.Is(err, ports.ErrDuplicate),
		errors.Is(err, commands.ErrAmountMismatch),
		errors.Is(err, commands.ErrCaptureMismatch):
		return http.StatusConflict, envelope{Status: statusFailed, Message: err.Error()}
	case errors.Is(err, domain.ErrNoLinkedInstrument):
		return http.StatusPreconditionFailed, envelope{Status: statusFailed, Message: "no linked payment card; authorize a card first"}
	case errors.Is(err, gateway.ErrRejected):
		message := gateway.Message(err)
		if message == "" {
			message = "payment was declined"
		}
		return http.StatusPaymentRequired, envelope{Status: statusFailed, Message: message}
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, envelope{Status: statusError, Message: "payment gateway unavailable, retry with the same reference"}
	case errors.Is(err, ports.ErrLockTimeout):
		return http.StatusServiceUnavailable, envelope{Status: statusError, Message: "order is busy, retry shortly"}
	default:
		return http.StatusInternalServerError, envelope{Status: statusError, Message: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, success(data))
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}

// restoreHeaders rebuilds the headers of a replayed response.
func restoreHeaders() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Idempotent-Replayed", "true")
	return header
}
