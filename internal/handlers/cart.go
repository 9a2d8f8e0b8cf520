package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/services"
)

// CartHandlers exposes the visitor's cart together with a pricing quote for the café's base
// delivery fee.
type CartHandlers struct {
	carts   services.CartService
	pricing *services.PricingEngine
	money   services.MoneyFormatter
}

// NewCartHandlers constructs the cart handlers.
func NewCartHandlers(carts services.CartService, pricing *services.PricingEngine, money services.MoneyFormatter) *CartHandlers {
	return &CartHandlers{carts: carts, pricing: pricing, money: money}
}

// Routes wires the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{itemID}", h.setQuantity)
	r.Delete("/items/{itemID}", h.removeItem)
}

type cartResponse struct {
	Items    []domain.CartLine      `json:"items"`
	Count    int                    `json:"count"`
	Quote    *domain.PricingResult  `json:"quote,omitempty"`
	Display  *services.MoneyDisplay `json:"display,omitempty"`
	Currency string                 `json:"currency"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	lines, err := h.carts.Load(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.respond(w, lines)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	var input services.CartItemInput
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	lines, err := h.carts.AddOrIncrement(ctx, input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.respond(w, lines)
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	var req setQuantityRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeInvalid(ctx, w, "quantity is required")
		return
	}
	lines, err := h.carts.SetQuantity(ctx, domain.ID(chi.URLParam(r, "itemID")), *req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.respond(w, lines)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	lines, err := h.carts.Remove(ctx, domain.ID(chi.URLParam(r, "itemID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.respond(w, lines)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	if err := h.carts.Clear(ctx); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.respond(w, nil)
}

func (h *CartHandlers) respond(w http.ResponseWriter, lines []domain.CartLine) {
	payload := cartResponse{
		Items:    nonNil(lines),
		Currency: h.money.Currency(),
	}
	for _, line := range lines {
		payload.Count += line.Quantity
	}
	if h.pricing != nil && len(lines) > 0 {
		quote := h.pricing.Quote(lines, domain.DeliveryLocation{})
		display := h.money.Display(quote)
		payload.Quote = &quote
		payload.Display = &display
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, payload)
}
