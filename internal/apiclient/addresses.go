package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// ListAddresses returns the customer's saved addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	return list[domain.Address](ctx, c, "/address/", nil)
}

// DefaultAddress returns the default saved address, or ErrNotFound when none is flagged.
func (c *Client) DefaultAddress(ctx context.Context) (domain.Address, error) {
	addresses, err := list[domain.Address](ctx, c, "/address/", url.Values{"is_default": {"true"}})
	if err != nil {
		return domain.Address{}, err
	}
	if len(addresses) == 0 {
		return domain.Address{}, ErrNotFound
	}
	return addresses[0], nil
}

// CreateAddress saves a new address.
func (c *Client) CreateAddress(ctx context.Context, address domain.Address) (domain.Address, error) {
	var out domain.Address
	if err := c.do(ctx, http.MethodPost, "/address/", nil, address, &out); err != nil {
		return domain.Address{}, err
	}
	return out, nil
}

// UpdateAddress replaces a saved address.
func (c *Client) UpdateAddress(ctx context.Context, id domain.ID, address domain.Address) (domain.Address, error) {
	var out domain.Address
	if err := c.do(ctx, http.MethodPut, addressPath(id), nil, address, &out); err != nil {
		return domain.Address{}, err
	}
	return out, nil
}

// DeleteAddress removes a saved address.
func (c *Client) DeleteAddress(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, addressPath(id), nil, nil, nil)
}

// SetDefaultAddress flags an address as the default.
func (c *Client) SetDefaultAddress(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodPatch, addressPath(id)+"set-default/", nil, nil, nil)
}

func addressPath(id domain.ID) string {
	return "/address/" + url.PathEscape(id.String()) + "/"
}
