package payments

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Sessions stripeSessionAPI
}

// StripeProvider opens Stripe Checkout sessions directly. The tx_ref travels as the session's
// client_reference_id and the order id as metadata.
type StripeProvider struct {
	sessions stripeSessionAPI
	logger   StripeLogger
}

// NewStripeProvider constructs a Stripe provider.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeProvider{sessions: sessions, logger: logger}, nil
}

// Initialize implements Provider.
func (p *StripeProvider) Initialize(ctx context.Context, req InitRequest) (Session, error) {
	if req.Amount.Sign() <= 0 {
		return Session{}, errors.New("stripe: amount must be positive")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionPlaceholder(req.ReturnURL)),
		ClientReferenceID: stripe.String(req.TxRef),
		Metadata: map[string]string{
			"order_id": req.OrderID.String(),
			"tx_ref":   req.TxRef,
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(minorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order " + req.OrderID.String()),
				},
			},
		}},
	}
	if req.CancelURL != "" {
		params.CancelURL = stripe.String(req.CancelURL)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.TxRef)

	session, err := p.sessions.New(params)
	if err != nil {
		return Session{}, &providerError{op: "stripe initialize", message: stripeMessage(err), err: err}
	}
	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"txRef":     req.TxRef,
		"orderId":   req.OrderID.String(),
	})
	return Session{CheckoutURL: session.URL, TxRef: req.TxRef}, nil
}

// Verify implements Provider. The session id comes from the success URL.
func (p *StripeProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return Verification{}, errors.New("stripe: session id is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.sessions.Get(sessionID, params)
	if err != nil {
		return Verification{}, &providerError{op: "stripe verify", message: stripeMessage(err), err: err}
	}
	if session.ClientReferenceID != req.TxRef {
		return Verification{Verified: false, Status: StatusFailed, Message: "Transaction reference mismatch"}, nil
	}
	verification := Verification{OrderID: domain.ID(session.Metadata["order_id"])}
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		verification.Verified = true
		verification.Status = StatusCompleted
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		verification.Status = StatusPending
		if session.Status == stripe.CheckoutSessionStatusExpired {
			verification.Status = StatusFailed
		}
	default:
		verification.Status = StatusFailed
	}
	p.logger(ctx, "payments.stripe.session.verified", map[string]any{
		"sessionId": session.ID,
		"status":    verification.Status,
	})
	return verification, nil
}

// withSessionPlaceholder makes Stripe append the session id to the return URL.
func withSessionPlaceholder(returnURL string) string {
	if strings.Contains(returnURL, "{CHECKOUT_SESSION_ID}") {
		return returnURL
	}
	separator := "?"
	if parsed, err := url.Parse(returnURL); err == nil && parsed.RawQuery != "" {
		separator = "&"
	}
	return returnURL + separator + "session_id={CHECKOUT_SESSION_ID}"
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Msg
	}
	return ""
}

var _ Provider = (*StripeProvider)(nil)
var _ Provider = (*BackendProvider)(nil)
