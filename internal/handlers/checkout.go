package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/services"
)

// CheckoutHandlers drives the three-step checkout of the signed-in visitor.
type CheckoutHandlers struct {
	authn      *auth.Authenticator
	checkout   services.CheckoutService
	idempotent func(http.Handler) http.Handler
}

// NewCheckoutHandlers constructs the checkout handlers. idempotent guards submission and may be nil.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, idempotent func(http.Handler) http.Handler) *CheckoutHandlers {
	return &CheckoutHandlers{authn: authn, checkout: checkout, idempotent: idempotent}
}

// Routes wires the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser())
	}
	r.Get("/", h.current)
	r.Post("/next", h.next)
	r.Post("/back", h.back)
	r.Post("/abandon", h.abandon)
	r.Put("/delivery", h.updateDelivery)
	submit := http.Handler(http.HandlerFunc(h.submit))
	if h.idempotent != nil {
		submit = h.idempotent(submit)
	}
	r.Method(http.MethodPost, "/submit", submit)
}

func (h *CheckoutHandlers) current(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, services.CheckoutService.Current)
}

func (h *CheckoutHandlers) next(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, services.CheckoutService.Next)
}

func (h *CheckoutHandlers) back(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, services.CheckoutService.Back)
}

func (h *CheckoutHandlers) updateDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	var input services.DeliveryDetailsInput
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	view, err := h.checkout.UpdateDetails(ctx, input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	result, err := h.checkout.Submit(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, result)
}

func (h *CheckoutHandlers) abandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	if err := h.checkout.Abandon(ctx); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) respond(w http.ResponseWriter, r *http.Request, step func(services.CheckoutService, context.Context) (services.CheckoutView, error)) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	view, err := step(h.checkout, ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, view)
}

// PaymentHandlers opens the hosted checkout and handles its return and cancel landings.
type PaymentHandlers struct {
	authn      *auth.Authenticator
	payments   services.PaymentService
	idempotent func(http.Handler) http.Handler
}

// NewPaymentHandlers constructs the payment handlers. idempotent guards initialization and may be nil.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService, idempotent func(http.Handler) http.Handler) *PaymentHandlers {
	return &PaymentHandlers{authn: authn, payments: payments, idempotent: idempotent}
}

// Routes wires the /payments endpoints. The landings stay reachable without a session so the cart
// is cleared even when the sign-in lapsed during the hosted checkout.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/return", h.handleReturn)
	r.Get("/cancel", h.handleCancel)
	r.Group(func(r chi.Router) {
		if h.authn != nil {
			r.Use(h.authn.RequireUser())
		}
		initialize := http.Handler(http.HandlerFunc(h.initialize))
		if h.idempotent != nil {
			initialize = h.idempotent(initialize)
		}
		r.Method(http.MethodPost, "/initialize", initialize)
	})
}

type initializePaymentRequest struct {
	OrderID domain.ID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

func (h *PaymentHandlers) initialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment")
		return
	}
	var req initializePaymentRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}
	handoff, err := h.payments.Initialize(ctx, req.OrderID, req.Amount)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, handoff)
}

func (h *PaymentHandlers) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment")
		return
	}
	query := r.URL.Query()
	outcome, err := h.payments.HandleReturn(ctx, services.PaymentReturn{
		TxRef:     query.Get("tx_ref"),
		Status:    query.Get("status"),
		SessionID: query.Get("session_id"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, outcome)
}

func (h *PaymentHandlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment")
		return
	}
	outcome, err := h.payments.HandleCancel(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, outcome)
}
