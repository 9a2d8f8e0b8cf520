// Package storage provides the durable key/value capability that replaces browser local storage.
// Every backend stores opaque string values; callers own serialisation.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// ErrNoVisitor is returned by visitor-scoped storage when the context carries no visitor id.
var ErrNoVisitor = errors.New("storage: visitor id missing from context")

// Storage is the get/set/remove capability shared by every persistence backend.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by backends holding network connections.
type Closer interface {
	Close() error
}

// VisitorScoped namespaces every key with the visitor id taken from the request context so a
// single backend can hold the state of every browser.
type VisitorScoped struct {
	backend Storage
}

// NewVisitorScoped wraps the backend.
func NewVisitorScoped(backend Storage) *VisitorScoped {
	return &VisitorScoped{backend: backend}
}

// Get implements Storage.
func (s *VisitorScoped) Get(ctx context.Context, key string) (string, error) {
	scoped, err := scopedKey(ctx, key)
	if err != nil {
		return "", err
	}
	return s.backend.Get(ctx, scoped)
}

// Set implements Storage.
func (s *VisitorScoped) Set(ctx context.Context, key, value string) error {
	scoped, err := scopedKey(ctx, key)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, scoped, value)
}

// Remove implements Storage.
func (s *VisitorScoped) Remove(ctx context.Context, key string) error {
	scoped, err := scopedKey(ctx, key)
	if err != nil {
		return err
	}
	return s.backend.Remove(ctx, scoped)
}

// Ping forwards to the backend when it supports readiness probes.
func (s *VisitorScoped) Ping(ctx context.Context) error {
	if pinger, ok := s.backend.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func scopedKey(ctx context.Context, key string) (string, error) {
	visitor, ok := requestctx.Visitor(ctx)
	if !ok {
		return "", ErrNoVisitor
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	return "visitor:" + visitor + ":" + key, nil
}
