package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures, timeouts and 5xx answers. Callers may retry with the same reference.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a definitive failure reported by the gateway. Retrying the same input will not help.
	ErrRejected = errors.New("payment gateway rejected request")
)

// Error carries the failing operation and the gateway's own message.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the gateway-supplied message of err, if it carries one.
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}

func unavailable(op string, status int, message string, err error) error {
	return &Error{Op: op, StatusCode: status, Message: message, Kind: ErrUnavailable, Err: err}
}

func rejected(op string, status int, message string) error {
	return &Error{Op: op, StatusCode: status, Message: message, Kind: ErrRejected}
}

// Rejected builds an ErrRejected error for a gateway answer that was well-formed but unsuccessful,
// such as a declined charge or a failed pre-authorization.
func Rejected(op, message string) error {
	return rejected(op, 0, message)
}
