package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// LoginPath is where the UI sends visitors whose session is missing or expired.
const LoginPath = "/login"

// ErrNoSession indicates that the visitor has no signed-in session.
var ErrNoSession = errors.New("auth: no session")

// IdentityResolver loads the identity for the visitor carried by the context.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (*Identity, error)
}

// IdentityResolverFunc adapts ordinary functions to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context) (*Identity, error)

// ResolveIdentity calls the wrapped function.
func (f IdentityResolverFunc) ResolveIdentity(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// Authenticator wires session identity resolution into HTTP middleware.
type Authenticator struct {
	resolver IdentityResolver
}

// NewAuthenticator constructs an Authenticator backed by the resolver.
func NewAuthenticator(resolver IdentityResolver) *Authenticator {
	return &Authenticator{resolver: resolver}
}

// Attach stores the identity on the context when the visitor is signed in and passes through
// anonymous visitors untouched.
func (a *Authenticator) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil || a.resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		if identity, err := a.resolver.ResolveIdentity(r.Context()); err == nil && identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous visitors. When roles are supplied the identity must hold one.
func (a *Authenticator) RequireUser(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok && a != nil && a.resolver != nil {
				resolved, err := a.resolver.ResolveIdentity(r.Context())
				if err == nil && resolved != nil {
					identity, ok = resolved, true
					r = r.WithContext(WithIdentity(r.Context(), identity))
				}
			}
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "sign in to continue")
				return
			}
			if len(allowedRoles) > 0 && !identity.HasAnyRole(allowedRoles...) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	}
	if status == http.StatusUnauthorized {
		payload["redirect"] = LoginPath
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
