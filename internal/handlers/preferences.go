package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/services"
)

// PreferenceHandlers exposes the dark mode preference of the visitor.
type PreferenceHandlers struct {
	theme services.ThemeService
}

// NewPreferenceHandlers constructs the preference handlers.
func NewPreferenceHandlers(theme services.ThemeService) *PreferenceHandlers {
	return &PreferenceHandlers{theme: theme}
}

// Routes wires the /preferences endpoints.
func (h *PreferenceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/theme", h.getTheme)
	r.Put("/theme", h.putTheme)
	r.Post("/theme/toggle", h.toggleTheme)
}

type themePayload struct {
	DarkMode *bool `json:"dark_mode"`
}

func (h *PreferenceHandlers) getTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.theme == nil {
		writeUnavailable(ctx, w, "preferences")
		return
	}
	enabled, err := h.theme.DarkMode(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, themePayload{DarkMode: &enabled})
}

func (h *PreferenceHandlers) putTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.theme == nil {
		writeUnavailable(ctx, w, "preferences")
		return
	}
	var req themePayload
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}
	if req.DarkMode == nil {
		writeInvalid(ctx, w, "dark_mode is required")
		return
	}
	enabled, err := h.theme.SetDarkMode(ctx, *req.DarkMode)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, themePayload{DarkMode: &enabled})
}

func (h *PreferenceHandlers) toggleTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.theme == nil {
		writeUnavailable(ctx, w, "preferences")
		return
	}
	enabled, err := h.theme.Toggle(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, themePayload{DarkMode: &enabled})
}
