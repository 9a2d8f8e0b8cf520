// Package payments hands orders off to a hosted checkout page and verifies the outcome when the
// visitor returns.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// Status values reported by Verify.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// ErrUnsupportedProvider is returned when no provider is registered under the requested name.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// InitRequest describes the hosted checkout to open for an order.
type InitRequest struct {
	OrderID   domain.ID
	Amount    decimal.Decimal
	Currency  string
	TxRef     string
	ReturnURL string
	CancelURL string
}

// Session is the opened hosted checkout.
type Session struct {
	Provider    string
	CheckoutURL string
	// TxRef is the reference the provider settled on; it may differ from the requested one.
	TxRef string
}

// VerifyRequest identifies a returning payment.
type VerifyRequest struct {
	TxRef string
	// SessionID is the provider session id when the return URL carries one.
	SessionID string
}

// Verification is the normalised outcome of a hosted checkout.
type Verification struct {
	Verified bool
	Status   string
	OrderID  domain.ID
	Message  string
}

// Provider is implemented by every hosted checkout adapter.
type Provider interface {
	Initialize(ctx context.Context, req InitRequest) (Session, error)
	Verify(ctx context.Context, req VerifyRequest) (Verification, error)
}

// Gateway routes calls to the configured provider.
type Gateway struct {
	providers map[string]Provider
	active    string
}

// NewGateway registers providers and selects the active one.
func NewGateway(active string, providers map[string]Provider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	normalised := make(map[string]Provider, len(providers))
	for name, provider := range providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider %q", name)
		}
		normalised[key] = provider
	}
	active = strings.ToLower(strings.TrimSpace(active))
	if _, ok := normalised[active]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, active)
	}
	return &Gateway{providers: normalised, active: active}, nil
}

// Provider returns the active provider name.
func (g *Gateway) Provider() string { return g.active }

// Initialize opens a hosted checkout with the active provider.
func (g *Gateway) Initialize(ctx context.Context, req InitRequest) (Session, error) {
	session, err := g.providers[g.active].Initialize(ctx, req)
	if err != nil {
		return Session{}, err
	}
	session.Provider = g.active
	if session.TxRef == "" {
		session.TxRef = req.TxRef
	}
	return session, nil
}

// Verify asks the active provider for the outcome of a payment.
func (g *Gateway) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	return g.providers[g.active].Verify(ctx, req)
}

// UserMessage extracts the provider's explanation from a failed call, if any.
func UserMessage(err error) string {
	var messenger interface{ UserMessage() string }
	if errors.As(err, &messenger) {
		return messenger.UserMessage()
	}
	return ""
}
