package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/payments"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories/kv"
)

type stubGateway struct {
	session      payments.Session
	initErr      error
	verification payments.Verification
	verifyErr    error
	inits        []payments.InitRequest
	verifies     []payments.VerifyRequest
}

func (g *stubGateway) Provider() string { return "backend" }

func (g *stubGateway) Initialize(_ context.Context, req payments.InitRequest) (payments.Session, error) {
	g.inits = append(g.inits, req)
	if g.initErr != nil {
		return payments.Session{}, g.initErr
	}
	return g.session, nil
}

func (g *stubGateway) Verify(_ context.Context, req payments.VerifyRequest) (payments.Verification, error) {
	g.verifies = append(g.verifies, req)
	return g.verification, g.verifyErr
}

type messageError struct{ message string }

func (e messageError) Error() string       { return "provider failure" }
func (e messageError) UserMessage() string { return e.message }

var paymentNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type paymentFixture struct {
	service   PaymentService
	gateway   *stubGateway
	markers   *kv.PaymentMarkerRepository
	cart      CartService
	orders    *stubOrderAPI
	publisher *recordingPublisher
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	backend := storage.NewMemoryStore()
	f := &paymentFixture{
		gateway:   &stubGateway{session: payments.Session{CheckoutURL: "https://checkout.example/abc", Provider: "backend"}},
		markers:   kv.NewPaymentMarkerRepository(storage.NewVisitorScoped(backend)),
		cart:      newTestCartService(t, backend, nil),
		orders:    newStubOrderAPI(domain.Order{ID: "42", Status: domain.StatusPending}),
		publisher: &recordingPublisher{},
	}
	service, err := NewPaymentService(PaymentServiceDeps{
		Gateway:       f.gateway,
		Markers:       f.markers,
		Cart:          f.cart,
		Orders:        f.orders,
		Currency:      "etb",
		PublicBaseURL: "https://shop.example/",
		Publisher:     f.publisher,
		Clock:         fixedClock(paymentNow),
		Random:        func() uint64 { return 123456789 },
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	f.service = service
	return f
}

func (f *paymentFixture) seedCart(t *testing.T, ctx context.Context) {
	t.Helper()
	if _, err := f.cart.AddOrIncrement(ctx, CartItemInput{ID: "1", Name: "Burger", Price: dec("10")}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
}

func TestPaymentInitializeBuildsRequestAndMarker(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)

	handoff, err := f.service.Initialize(ctx, "42", dec("34.99"))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	expectedRef := "TX-" + "1717228800000" + "-" + strings.ToUpper("21i3v9")
	if handoff.TxRef != expectedRef {
		t.Fatalf("expected tx_ref %s, got %s", expectedRef, handoff.TxRef)
	}
	req := f.gateway.inits[0]
	if req.Currency != "ETB" || req.ReturnURL != "https://shop.example/payment-success?tx_ref="+expectedRef {
		t.Fatalf("unexpected init request %+v", req)
	}
	if handoff.CheckoutURL != "https://checkout.example/abc" || handoff.Amount != "34.99" {
		t.Fatalf("unexpected handoff %+v", handoff)
	}
	marker, err := f.markers.Load(ctx)
	if err != nil {
		t.Fatalf("load marker: %v", err)
	}
	if marker.TxRef != expectedRef || marker.OrderID != "42" || marker.Timestamp != paymentNow.UnixMilli() {
		t.Fatalf("unexpected marker %+v", marker)
	}
}

func TestPaymentInitializePrefersProviderTxRef(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.gateway.session.TxRef = "CHAPA-REF"

	handoff, err := f.service.Initialize(ctx, "42", dec("10"))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	marker, _ := f.markers.Load(ctx)
	if handoff.TxRef != "CHAPA-REF" || marker.TxRef != "CHAPA-REF" {
		t.Fatalf("expected provider reference, got %s / %s", handoff.TxRef, marker.TxRef)
	}
}

func TestPaymentInitializeFailureMessage(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.gateway.initErr = messageError{message: "Amount too small"}

	_, err := f.service.Initialize(ctx, "42", dec("10"))
	uerr, ok := AsUserError(err)
	if !ok || uerr.Message() != "Amount too small" || !errors.Is(err, ErrPaymentInitFailed) {
		t.Fatalf("unexpected error %v", err)
	}

	f.gateway.initErr = errBoom
	_, err = f.service.Initialize(ctx, "42", dec("10"))
	if uerr, ok := AsUserError(err); !ok || uerr.Message() != "Failed to initialize payment" {
		t.Fatalf("expected generic message, got %v", err)
	}
	if _, err := f.markers.Load(ctx); !isRepoNotFound(err) {
		t.Fatalf("no marker expected after failure, got %v", err)
	}
}

func TestPaymentInitializeValidatesInput(t *testing.T) {
	f := newPaymentFixture(t)
	if _, err := f.service.Initialize(visitorContext("v1"), "", dec("10")); !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.service.Initialize(visitorContext("v1"), "42", dec("0")); !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPaymentReturnVerifiedConfirmsOrder(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.seedCart(t, ctx)
	f.gateway.verification = payments.Verification{Verified: true, Status: payments.StatusCompleted, OrderID: "42"}

	outcome, err := f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-1"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !outcome.Success || outcome.OrderID != "42" || outcome.NextView != ViewOrderHistory {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(f.orders.actions) != 1 || f.orders.actions[0] != "42:confirm" {
		t.Fatalf("expected confirm action, got %v", f.orders.actions)
	}
	if lines, _ := f.cart.Load(ctx); len(lines) != 0 {
		t.Fatalf("cart must be cleared")
	}
	if types := f.publisher.types(); len(types) != 1 || types[0] != EventPaymentVerified {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestPaymentReturnConfirmFailureIsIgnored(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.orders.actionErr = errBoom
	f.gateway.verification = payments.Verification{Verified: true, Status: payments.StatusCompleted, OrderID: "42"}

	outcome, err := f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-1"})
	if err != nil || !outcome.Success {
		t.Fatalf("confirm failure must not fail the landing: %+v %v", outcome, err)
	}
}

func TestPaymentReturnNotVerified(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.seedCart(t, ctx)
	f.gateway.verification = payments.Verification{Verified: false}

	outcome, _ := f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-1"})
	if outcome.Success || outcome.Message != "Payment verification failed. Please contact support." {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if lines, _ := f.cart.Load(ctx); len(lines) != 0 {
		t.Fatalf("the landing clears the cart before verifying")
	}
}

func TestPaymentReturnWithoutTxRef(t *testing.T) {
	f := newPaymentFixture(t)
	outcome, _ := f.service.HandleReturn(visitorContext("v1"), PaymentReturn{})
	if outcome.Success || outcome.Message != "No transaction reference found in URL" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(f.gateway.verifies) != 0 {
		t.Fatalf("verify must not be called")
	}
}

func TestPaymentReturnReconcilesWithMarker(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	_ = f.markers.Save(ctx, domain.PendingPayment{TxRef: "TX-9", OrderID: "42", Amount: "10.00"})
	f.gateway.verifyErr = errBoom

	outcome, err := f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-9"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !outcome.Success || !outcome.Reconciled || outcome.OrderID != "42" {
		t.Fatalf("expected reconciled success, got %+v", outcome)
	}
	if _, err := f.markers.Load(ctx); !isRepoNotFound(err) {
		t.Fatalf("marker must be removed, got %v", err)
	}
	if types := f.publisher.types(); len(types) != 1 || types[0] != EventPaymentReconciled {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestPaymentReturnVerifyErrorWithoutMatchingMarker(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	_ = f.markers.Save(ctx, domain.PendingPayment{TxRef: "TX-OTHER"})
	f.gateway.verifyErr = messageError{message: "Transaction not found"}

	outcome, _ := f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-9"})
	if outcome.Success || outcome.Message != "Transaction not found" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	f.gateway.verifyErr = errBoom
	outcome, _ = f.service.HandleReturn(ctx, PaymentReturn{TxRef: "TX-9"})
	if outcome.Message != "Payment verification failed. Please check your order status." {
		t.Fatalf("unexpected fallback message %q", outcome.Message)
	}
}

func TestPaymentCancelKeepsCart(t *testing.T) {
	ctx := visitorContext("v1")
	f := newPaymentFixture(t)
	f.seedCart(t, ctx)

	outcome, err := f.service.HandleCancel(ctx)
	if err != nil || outcome.NextView != ViewCart || outcome.Success {
		t.Fatalf("unexpected outcome %+v %v", outcome, err)
	}
	if lines, _ := f.cart.Load(ctx); len(lines) != 1 {
		t.Fatalf("cancel must keep the cart")
	}
}
