package repositories

import (
	"context"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists the visitor's cart as one document (last write wins).
type CartRepository interface {
	// Load never fails on bad data: absent or unparsable content yields an empty cart.
	Load(ctx context.Context) ([]domain.CartLine, error)
	Save(ctx context.Context, lines []domain.CartLine) error
	Clear(ctx context.Context) error
}

// SessionRepository persists the access token, refresh token and cached user under separate keys.
type SessionRepository interface {
	Load(ctx context.Context) (domain.AuthSession, error)
	SaveTokens(ctx context.Context, access, refresh string) error
	SaveAccessToken(ctx context.Context, access string) error
	SaveUser(ctx context.Context, user domain.User) error
	Clear(ctx context.Context) error
}

// PaymentMarkerRepository persists the pending-payment reconciliation marker.
type PaymentMarkerRepository interface {
	Save(ctx context.Context, marker domain.PendingPayment) error
	// Load returns a not-found RepositoryError when no marker exists.
	Load(ctx context.Context) (domain.PendingPayment, error)
	Clear(ctx context.Context) error
}

// PreferenceRepository persists UI preferences.
type PreferenceRepository interface {
	// DarkMode returns the stored flag and whether one was stored.
	DarkMode(ctx context.Context) (bool, bool, error)
	SetDarkMode(ctx context.Context, enabled bool) error
}

// HealthRepository exposes the status of downstream dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
