package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// UserFilter narrows the user listing.
type UserFilter struct {
	StaffOnly     bool
	CustomersOnly bool
}

// DashboardStats returns the server-side dashboard summary.
func (c *Client) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/admin/dashboard-stats/", nil, nil, &stats); err != nil {
		return domain.DashboardStats{}, err
	}
	return stats, nil
}

// ListUsers returns registered users (staff only).
func (c *Client) ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := url.Values{}
	if filter.StaffOnly {
		query.Set("is_cafe_staff", "true")
	}
	if filter.CustomersOnly {
		query.Set("is_customer", "true")
	}
	return list[domain.User](ctx, c, "/auth/users/", query)
}

// DeleteUser removes a user account (staff only).
func (c *Client) DeleteUser(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, "/auth/users/"+url.PathEscape(id.String())+"/", nil, nil, nil)
}
