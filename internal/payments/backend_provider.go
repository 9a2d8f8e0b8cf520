package payments

import (
	"context"
	"fmt"

	"github.com/cafe-delivery/storefront/internal/apiclient"
)

type backendAPI interface {
	InitializePayment(ctx context.Context, init apiclient.PaymentInit) (apiclient.PaymentSession, error)
	VerifyPayment(ctx context.Context, txRef string) (apiclient.PaymentVerification, error)
}

// BackendProvider lets the café API open and verify the hosted checkout.
type BackendProvider struct {
	api backendAPI
}

// NewBackendProvider wraps the API client.
func NewBackendProvider(api backendAPI) *BackendProvider {
	return &BackendProvider{api: api}
}

// providerError carries the "message" field of an API failure.
type providerError struct {
	op      string
	message string
	err     error
}

func (e *providerError) Error() string       { return fmt.Sprintf("payments: %s: %v", e.op, e.err) }
func (e *providerError) Unwrap() error       { return e.err }
func (e *providerError) UserMessage() string { return e.message }

func wrapBackendError(op string, err error) error {
	message := ""
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		message = apiErr.Value("message")
	}
	return &providerError{op: op, message: message, err: err}
}

// Initialize implements Provider.
func (p *BackendProvider) Initialize(ctx context.Context, req InitRequest) (Session, error) {
	resp, err := p.api.InitializePayment(ctx, apiclient.PaymentInit{
		OrderID:   req.OrderID,
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
		TxRef:     req.TxRef,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		return Session{}, wrapBackendError("initialize", err)
	}
	return Session{CheckoutURL: resp.CheckoutURL, TxRef: resp.TxRef}, nil
}

// Verify implements Provider.
func (p *BackendProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	resp, err := p.api.VerifyPayment(ctx, req.TxRef)
	if err != nil {
		return Verification{}, wrapBackendError("verify", err)
	}
	return Verification{
		Verified: resp.Verified,
		Status:   resp.Status,
		OrderID:  resp.Payment.Order,
		Message:  resp.Message,
	}, nil
}
