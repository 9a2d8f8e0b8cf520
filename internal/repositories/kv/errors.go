// Package kv implements the storefront repositories on top of the key/value storage capability.
// Every value is JSON; the keys match the names the browser client historically used.
package kv

import (
	"errors"
	"fmt"

	"github.com/cafe-delivery/storefront/internal/platform/storage"
)

// Storage keys.
const (
	KeyCart           = "cart"
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyUser           = "user"
	KeyPendingPayment = "pending_payment"
	KeyDarkMode       = "darkMode"
)

// Error classifies storage failures for the services layer.
type Error struct {
	op       string
	err      error
	notFound bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports whether the key was absent.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsConflict is always false; storage writes are last-write-wins.
func (e *Error) IsConflict() bool { return false }

// IsUnavailable reports whether the backend signalled a transient outage.
func (e *Error) IsUnavailable() bool {
	var classified interface{ IsUnavailable() bool }
	if errors.As(e.err, &classified) {
		return classified.IsUnavailable()
	}
	return !e.notFound && !errors.Is(e.err, storage.ErrNoVisitor)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{op: op, err: err, notFound: errors.Is(err, storage.ErrNotFound)}
}
