package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// Roles derived from the café API's user flags.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// Identity is the signed-in café user attached to a request.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// IdentityForUser maps the API's user flags onto roles. Staff accounts that are not also flagged
// as customers get no customer role; superusers additionally get admin.
func IdentityForUser(user domain.User) *Identity {
	staff := user.IsStaffMember()
	roles := make([]string, 0, 3)
	if user.IsCustomer || !staff {
		roles = append(roles, RoleCustomer)
	}
	if staff {
		roles = append(roles, RoleStaff)
	}
	if user.IsSuperuser {
		roles = append(roles, RoleAdmin)
	}
	return &Identity{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
	}
}

// HasRole matches case-insensitively.
func (i *Identity) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if i == nil || role == "" {
		return false
	}
	return slices.ContainsFunc(i.Roles, func(r string) bool { return strings.EqualFold(r, role) })
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, i.HasRole)
}

// CanManageCafe reports access to the admin console.
func (i *Identity) CanManageCafe() bool {
	return i.HasAnyRole(RoleStaff, RoleAdmin)
}

type identityKey struct{}

// WithIdentity stores the identity for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by Attach or RequireUser.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
