package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/payments"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

var (
	errPaymentGatewayRequired = errors.New("payment service: gateway is required")
	errPaymentMarkersRequired = errors.New("payment service: marker repository is required")
	errPaymentCartRequired    = errors.New("payment service: cart service is required")
)

var (
	// ErrPaymentInvalidInput indicates a missing order id or a non-positive amount.
	ErrPaymentInvalidInput = errors.New("payment service: invalid input")
	// ErrPaymentInitFailed indicates the hosted checkout could not be opened.
	ErrPaymentInitFailed = errors.New("payment service: initialization failed")
)

const (
	paymentInitFailedMessage  = "Failed to initialize payment"
	msgNoTxRef                = "No transaction reference found in URL"
	msgPaymentVerified        = "Payment verified successfully! Order confirmed."
	msgPaymentProcessed       = "Payment processed successfully!"
	msgVerificationFailed     = "Payment verification failed. Please contact support."
	msgVerificationUnreadable = "Payment verification failed. Please check your order status."
	msgPaymentCancelled       = "Your payment was cancelled. No charges were made to your account."
)

type orderActioner interface {
	OrderAction(ctx context.Context, id domain.ID, action string) error
}

// PaymentServiceDeps wires the payment handoff.
type PaymentServiceDeps struct {
	Gateway  paymentGateway
	Markers  repositories.PaymentMarkerRepository
	Cart     CartService
	Orders   orderActioner
	Currency string
	// PublicBaseURL is the storefront origin the hosted checkout returns to.
	PublicBaseURL string
	Publisher     OrderEventPublisher
	Clock         func() time.Time
	// Random supplies the random part of transaction references.
	Random func() uint64
	Logger func(context.Context, string, map[string]any)
}

type paymentService struct {
	gateway   paymentGateway
	markers   repositories.PaymentMarkerRepository
	cart      CartService
	orders    orderActioner
	currency  string
	baseURL   string
	publisher OrderEventPublisher
	now       func() time.Time
	random    func() uint64
	logger    func(context.Context, string, map[string]any)
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService constructs the payment handoff service.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Gateway == nil {
		return nil, errPaymentGatewayRequired
	}
	if deps.Markers == nil {
		return nil, errPaymentMarkersRequired
	}
	if deps.Cart == nil {
		return nil, errPaymentCartRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	random := deps.Random
	if random == nil {
		random = rand.Uint64
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "ETB"
	}
	return &paymentService{
		gateway:   deps.Gateway,
		markers:   deps.Markers,
		cart:      deps.Cart,
		orders:    deps.Orders,
		currency:  currency,
		baseURL:   strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/"),
		publisher: deps.Publisher,
		now:       clock,
		random:    random,
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

// Initialize opens the hosted checkout and records the reconciliation marker.
func (s *paymentService) Initialize(ctx context.Context, orderID domain.ID, amount decimal.Decimal) (PaymentHandoff, error) {
	if orderID.IsZero() || !amount.IsPositive() {
		return PaymentHandoff{}, ErrPaymentInvalidInput
	}
	txRef := s.newTxRef()
	session, err := s.gateway.Initialize(ctx, payments.InitRequest{
		OrderID:   orderID,
		Amount:    amount,
		Currency:  s.currency,
		TxRef:     txRef,
		ReturnURL: s.baseURL + "/payment-success?tx_ref=" + txRef,
		CancelURL: s.baseURL + "/payment-cancel",
	})
	if err != nil {
		s.logger(ctx, "payments.initialize_failed", map[string]any{"orderId": orderID.String(), "error": err.Error()})
		return PaymentHandoff{}, userError(ErrPaymentInitFailed, chooseFirstNonEmpty(payments.UserMessage(err), paymentInitFailedMessage), err)
	}
	if session.CheckoutURL == "" {
		return PaymentHandoff{}, userError(ErrPaymentInitFailed, paymentInitFailedMessage, nil)
	}

	settled := chooseFirstNonEmpty(session.TxRef, txRef)
	marker := domain.PendingPayment{
		TxRef:     settled,
		OrderID:   orderID,
		Amount:    domain.Money(amount),
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.markers.Save(ctx, marker); err != nil {
		s.logger(ctx, "payments.marker_save_failed", map[string]any{"txRef": settled, "error": err.Error()})
	}
	publish(ctx, s.publisher, s.logger, OrderEvent{
		Type:       EventPaymentInitialized,
		OrderID:    orderID,
		Total:      domain.Money(amount),
		TxRef:      settled,
		OccurredAt: s.now().UTC(),
	})
	return PaymentHandoff{
		CheckoutURL: session.CheckoutURL,
		TxRef:       settled,
		OrderID:     orderID,
		Amount:      domain.Money(amount),
		Provider:    session.Provider,
	}, nil
}

// HandleReturn verifies the payment the visitor came back from. The cart is cleared before
// anything else, matching the success landing.
func (s *paymentService) HandleReturn(ctx context.Context, params PaymentReturn) (PaymentOutcome, error) {
	s.clearCart(ctx)

	txRef := strings.TrimSpace(params.TxRef)
	if txRef == "" {
		return PaymentOutcome{Message: msgNoTxRef, NextView: ViewOrderHistory}, nil
	}

	verification, err := s.gateway.Verify(ctx, payments.VerifyRequest{TxRef: txRef, SessionID: strings.TrimSpace(params.SessionID)})
	if err != nil {
		s.logger(ctx, "payments.verify_failed", map[string]any{"txRef": txRef, "error": err.Error()})
		return s.reconcile(ctx, txRef, err), nil
	}
	if !verification.Verified {
		return PaymentOutcome{Message: msgVerificationFailed, NextView: ViewOrderHistory, OrderID: verification.OrderID}, nil
	}

	if verification.Status == payments.StatusCompleted && !verification.OrderID.IsZero() && s.orders != nil {
		if err := s.orders.OrderAction(ctx, verification.OrderID, ActionConfirm); err != nil {
			s.logger(ctx, "payments.order_confirm_failed", map[string]any{"orderId": verification.OrderID.String(), "error": err.Error()})
		} else {
			s.clearCart(ctx)
		}
	}
	s.clearMarker(ctx)
	publish(ctx, s.publisher, s.logger, OrderEvent{
		Type:       EventPaymentVerified,
		OrderID:    verification.OrderID,
		Status:     verification.Status,
		TxRef:      txRef,
		OccurredAt: s.now().UTC(),
	})
	return PaymentOutcome{
		Success:  true,
		Message:  msgPaymentVerified,
		NextView: ViewOrderHistory,
		OrderID:  verification.OrderID,
	}, nil
}

// reconcile accepts the payment when verification failed but the marker written at
// initialization carries the same reference.
func (s *paymentService) reconcile(ctx context.Context, txRef string, verifyErr error) PaymentOutcome {
	marker, err := s.markers.Load(ctx)
	if err == nil && marker.TxRef == txRef {
		s.clearMarker(ctx)
		s.clearCart(ctx)
		publish(ctx, s.publisher, s.logger, OrderEvent{
			Type:       EventPaymentReconciled,
			OrderID:    marker.OrderID,
			Total:      marker.Amount,
			TxRef:      txRef,
			OccurredAt: s.now().UTC(),
		})
		return PaymentOutcome{
			Success:    true,
			Message:    msgPaymentProcessed,
			NextView:   ViewOrderHistory,
			OrderID:    marker.OrderID,
			Reconciled: true,
		}
	}
	if err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "payments.marker_load_failed", map[string]any{"error": err.Error()})
	}
	return PaymentOutcome{
		Message:  chooseFirstNonEmpty(payments.UserMessage(verifyErr), msgVerificationUnreadable),
		NextView: ViewOrderHistory,
	}
}

// HandleCancel leaves the cart untouched so the visitor can retry.
func (s *paymentService) HandleCancel(ctx context.Context) (PaymentOutcome, error) {
	s.logger(ctx, "payments.cancelled", nil)
	return PaymentOutcome{Message: msgPaymentCancelled, NextView: ViewCart}, nil
}

// newTxRef builds TX-{unix millis}-{base36 random}, upper-cased.
func (s *paymentService) newTxRef() string {
	random := strconv.FormatUint(s.random(), 36)
	if len(random) > 13 {
		random = random[:13]
	}
	return strings.ToUpper("TX-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + random)
}

func (s *paymentService) clearCart(ctx context.Context) {
	if err := s.cart.Clear(ctx); err != nil {
		s.logger(ctx, "payments.cart_clear_failed", map[string]any{"error": err.Error()})
	}
}

func (s *paymentService) clearMarker(ctx context.Context) {
	if err := s.markers.Clear(ctx); err != nil {
		s.logger(ctx, "payments.marker_clear_failed", map[string]any{"error": err.Error()})
	}
}
