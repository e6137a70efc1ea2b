package ports

import (
	"context"
	"errors"
)

// Locker serializes work on a single order. unlock must be called on every path once Lock succeeds.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

var ErrLockTimeout = errors.New("timed out waiting for order lock")
