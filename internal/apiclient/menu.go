package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// MenuFilter narrows the menu listing.
type MenuFilter struct {
	CategoryType string
	Search       string
}

func (f MenuFilter) values() url.Values {
	query := url.Values{}
	if v := strings.TrimSpace(f.CategoryType); v != "" {
		query.Set("category__category_type", v)
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		query.Set("search", v)
	}
	return query
}

// MenuItemInput is the admin create/update payload.
type MenuItemInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Category        domain.ID       `json:"category"`
	Image           string          `json:"image,omitempty"`
	IsAvailable     bool            `json:"is_available"`
	PreparationTime int             `json:"preparation_time,omitempty"`
}

// ListMenuItems returns the menu, optionally filtered.
func (c *Client) ListMenuItems(ctx context.Context, filter MenuFilter) ([]domain.MenuItem, error) {
	return list[domain.MenuItem](ctx, c, "/menu/items/", filter.values())
}

// GetMenuItem returns one menu item.
func (c *Client) GetMenuItem(ctx context.Context, id domain.ID) (domain.MenuItem, error) {
	var item domain.MenuItem
	if err := c.do(ctx, http.MethodGet, "/menu/items/"+url.PathEscape(id.String())+"/", nil, nil, &item); err != nil {
		return domain.MenuItem{}, err
	}
	return item, nil
}

// ListCategories returns the menu categories.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return list[domain.Category](ctx, c, "/menu/categories/", nil)
}

// CreateMenuItem adds an item to the menu.
func (c *Client) CreateMenuItem(ctx context.Context, input MenuItemInput) (domain.MenuItem, error) {
	var item domain.MenuItem
	if err := c.do(ctx, http.MethodPost, "/menu/items/create/", nil, input, &item); err != nil {
		return domain.MenuItem{}, err
	}
	return item, nil
}

// UpdateMenuItem patches a menu item.
func (c *Client) UpdateMenuItem(ctx context.Context, id domain.ID, input MenuItemInput) (domain.MenuItem, error) {
	var item domain.MenuItem
	if err := c.do(ctx, http.MethodPatch, menuItemUpdatePath(id), nil, input, &item); err != nil {
		return domain.MenuItem{}, err
	}
	return item, nil
}

// DeleteMenuItem removes a menu item.
func (c *Client) DeleteMenuItem(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, menuItemUpdatePath(id), nil, nil, nil)
}

func menuItemUpdatePath(id domain.ID) string {
	return "/menu/items/" + url.PathEscape(id.String()) + "/update/"
}
