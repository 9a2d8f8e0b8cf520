package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/platform/httpx"
	"github.com/cafe-delivery/storefront/internal/services"
)

// SessionHandlers exposes sign-in, registration and profile endpoints. Tokens never leave the
// server; responses carry only the user.
type SessionHandlers struct {
	sessions services.SessionService
}

// NewSessionHandlers constructs the session handlers.
func NewSessionHandlers(sessions services.SessionService) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

// Routes wires the /auth endpoints.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/logout", h.logout)
	r.Post("/refresh", h.refresh)
	r.Get("/me", h.me)
	r.Put("/me", h.updateProfile)
	r.Post("/password", h.changePassword)
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	Staff         bool         `json:"staff"`
	Roles         []string     `json:"roles,omitempty"`
}

func newSessionResponse(session domain.AuthSession) sessionResponse {
	resp := sessionResponse{Authenticated: session.Authenticated(), User: session.User}
	if session.User != nil {
		identity := auth.IdentityForUser(*session.User)
		resp.Staff = identity.CanManageCafe()
		resp.Roles = identity.Roles
	}
	return resp
}

func (h *SessionHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	var creds apiclient.Credentials
	if !decodeJSONBody(ctx, w, r, &creds) {
		return
	}
	session, err := h.sessions.Login(ctx, creds)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

func (h *SessionHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	var reg apiclient.Registration
	if !decodeJSONBody(ctx, w, r, &reg) {
		return
	}
	session, err := h.sessions.Register(ctx, reg)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusCreated, newSessionResponse(session))
}

func (h *SessionHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	if err := h.sessions.Logout(ctx); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	session, err := h.sessions.Refresh(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

// me reports the signed-in user; anonymous visitors get authenticated=false rather than an error.
func (h *SessionHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	session, err := h.sessions.Current(ctx)
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		session = domain.AuthSession{}
	case err != nil:
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

func (h *SessionHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	if !h.requireIdentity(w, r) {
		return
	}
	var update apiclient.ProfileUpdate
	if !decodeJSONBody(ctx, w, r, &update) {
		return
	}
	user, err := h.sessions.UpdateProfile(ctx, update)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"user": user})
}

func (h *SessionHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	if !h.requireIdentity(w, r) {
		return
	}
	var change apiclient.PasswordChange
	if !decodeJSONBody(ctx, w, r, &change) {
		return
	}
	if err := h.sessions.ChangePassword(ctx, change); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (h *SessionHandlers) requireIdentity(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		return true
	}
	if _, err := h.sessions.ResolveIdentity(r.Context()); err == nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "sign in to continue", http.StatusUnauthorized).WithRedirect(auth.LoginPath))
	return false
}
