package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/services"
)

// AdminHandlers exposes the staff console.
type AdminHandlers struct {
	authn *auth.Authenticator
	admin services.AdminService
}

// NewAdminHandlers constructs the staff console handlers.
func NewAdminHandlers(authn *auth.Authenticator, admin services.AdminService) *AdminHandlers {
	return &AdminHandlers{authn: authn, admin: admin}
}

// Routes wires the /admin endpoints; every route requires the staff or admin role.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/dashboard", h.dashboard)
	r.Get("/analytics", h.analytics)

	r.Get("/orders", h.listOrders)
	r.Put("/orders/{orderID}/status", h.updateOrderStatus)
	r.Delete("/orders/{orderID}", h.deleteOrder)

	r.Post("/menu/items", h.createMenuItem)
	r.Put("/menu/items/{itemID}", h.updateMenuItem)
	r.Delete("/menu/items/{itemID}", h.deleteMenuItem)

	r.Get("/users", h.listUsers)
	r.Delete("/users/{userID}", h.deleteUser)
}

func (h *AdminHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	stats, err := h.admin.Dashboard(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, stats)
}

func (h *AdminHandlers) analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	report, err := h.admin.Analytics(ctx, r.URL.Query().Get("time_range"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, report)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	orders, err := h.admin.ListOrders(ctx, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": orders})
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	var req orderStatusRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}
	if err := h.admin.UpdateOrderStatus(ctx, domain.ID(chi.URLParam(r, "orderID")), req.Status); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": strings.ToLower(strings.TrimSpace(req.Status))})
}

func (h *AdminHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	if err := h.admin.DeleteOrder(ctx, domain.ID(chi.URLParam(r, "orderID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) createMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	var input apiclient.MenuItemInput
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	item, err := h.admin.CreateMenuItem(ctx, input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *AdminHandlers) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	var input apiclient.MenuItemInput
	if !decodeJSONBody(ctx, w, r, &input) {
		return
	}
	item, err := h.admin.UpdateMenuItem(ctx, domain.ID(chi.URLParam(r, "itemID")), input)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandlers) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	if err := h.admin.DeleteMenuItem(ctx, domain.ID(chi.URLParam(r, "itemID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listUsers accepts role=staff or role=customer.
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	var filter apiclient.UserFilter
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))) {
	case "":
	case "staff":
		filter.StaffOnly = true
	case "customer", "customers":
		filter.CustomersOnly = true
	default:
		writeInvalid(ctx, w, "role must be staff or customer")
		return
	}
	users, err := h.admin.ListUsers(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"users": nonNil(users)})
}

func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin")
		return
	}
	if err := h.admin.DeleteUser(ctx, domain.ID(chi.URLParam(r, "userID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
