package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/services"
)

// AddressHandlers exposes the signed-in user's address book.
type AddressHandlers struct {
	authn     *auth.Authenticator
	addresses services.AddressService
}

// NewAddressHandlers constructs the address handlers.
func NewAddressHandlers(authn *auth.Authenticator, addresses services.AddressService) *AddressHandlers {
	return &AddressHandlers{authn: authn, addresses: addresses}
}

// Routes wires the /addresses endpoints.
func (h *AddressHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser())
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/default", h.getDefault)
	r.Put("/{addressID}", h.update)
	r.Delete("/{addressID}", h.remove)
	r.Post("/{addressID}/default", h.setDefault)
}

func (h *AddressHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	addresses, err := h.addresses.List(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"addresses": nonNil(addresses)})
}

func (h *AddressHandlers) getDefault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	address, err := h.addresses.Default(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"address": address})
}

func (h *AddressHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	var input domain.Address
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	address, err := h.addresses.Create(ctx, input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"address": address})
}

func (h *AddressHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	var input domain.Address
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	address, err := h.addresses.Update(ctx, domain.ID(chi.URLParam(r, "addressID")), input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"address": address})
}

func (h *AddressHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	if err := h.addresses.Delete(ctx, domain.ID(chi.URLParam(r, "addressID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AddressHandlers) setDefault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	if err := h.addresses.SetDefault(ctx, domain.ID(chi.URLParam(r, "addressID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
