package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/platform/httpx"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/services"
)

const sessionExpiredMessage = "Your session has expired. Please sign in again."

type errorMapping struct {
	kind   error
	code   string
	status int
}

var errorMappings = []errorMapping{
	{services.ErrForbidden, "forbidden", http.StatusForbidden},
	{services.ErrSessionNotFound, "unauthenticated", http.StatusUnauthorized},

	{services.ErrCartInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCartItemUnavailable, "item_unavailable", http.StatusConflict},
	{services.ErrCartUnavailable, "cart_service_unavailable", http.StatusServiceUnavailable},

	{services.ErrCheckoutInvalidInput, "checkout_invalid", http.StatusUnprocessableEntity},
	{services.ErrCheckoutInvalidStep, "checkout_invalid_step", http.StatusConflict},
	{services.ErrCheckoutNoVisitor, "visitor_required", http.StatusBadRequest},
	{services.ErrCheckoutRejected, "order_rejected", http.StatusUnprocessableEntity},
	{services.ErrCheckoutUnavailable, "checkout_unavailable", http.StatusBadGateway},

	{services.ErrPaymentInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrPaymentInitFailed, "payment_init_failed", http.StatusBadGateway},

	{services.ErrSessionInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrSessionUnavailable, "auth_unavailable", http.StatusBadGateway},

	{services.ErrOrderInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrOrderNotFound, "order_not_found", http.StatusNotFound},
	{services.ErrOrderActionNotAllowed, "order_action_not_allowed", http.StatusConflict},
	{services.ErrOrderUnavailable, "orders_unavailable", http.StatusBadGateway},

	{services.ErrMenuInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrMenuNotFound, "menu_item_not_found", http.StatusNotFound},
	{services.ErrMenuUnavailable, "menu_unavailable", http.StatusBadGateway},

	{services.ErrAddressInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrAddressNotFound, "address_not_found", http.StatusNotFound},
	{services.ErrAddressUnavailable, "addresses_unavailable", http.StatusBadGateway},

	{services.ErrThemeUnavailable, "preferences_unavailable", http.StatusServiceUnavailable},

	{services.ErrAdminInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrAdminNotFound, "not_found", http.StatusNotFound},
	{services.ErrAdminUnavailable, "admin_unavailable", http.StatusBadGateway},
}

// writeServiceError maps service errors onto the JSON envelope. Expired sessions carry a redirect
// to the login view; validation errors carry their field messages.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrSessionExpired) {
		httpx.WriteError(ctx, w, httpx.NewError("session_expired", sessionExpiredMessage, http.StatusUnauthorized).WithRedirect(auth.LoginPath))
		return
	}

	for _, mapping := range errorMappings {
		if !errors.Is(err, mapping.kind) {
			continue
		}
		apiErr := httpx.NewError(mapping.code, visitorMessage(err, mapping.kind), mapping.status)
		if verr, ok := services.AsValidationError(err); ok {
			apiErr = apiErr.WithFieldErrors(verr.Fields())
		}
		if mapping.status == http.StatusUnauthorized {
			apiErr = apiErr.WithRedirect(auth.LoginPath)
		}
		httpx.WriteError(ctx, w, apiErr)
		return
	}

	requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "Something went wrong. Please try again.", http.StatusInternalServerError))
}

func visitorMessage(err, kind error) string {
	if verr, ok := services.AsValidationError(err); ok {
		return verr.Message()
	}
	if userErr, ok := services.AsUserError(err); ok {
		return userErr.Message()
	}
	return kind.Error()
}
