package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// CreateOrder submits a new order.
func (c *Client) CreateOrder(ctx context.Context, submission domain.OrderSubmission) (domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders/", nil, submission, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders returns the signed-in customer's orders.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return list[domain.Order](ctx, c, "/orders/", nil)
}

// GetOrder returns one of the customer's orders.
func (c *Client) GetOrder(ctx context.Context, id domain.ID) (domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, orderPath(id), nil, nil, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// OrderAction applies a status action such as cancel, confirm or confirm_delivery.
func (c *Client) OrderAction(ctx context.Context, id domain.ID, action string) error {
	return c.do(ctx, http.MethodPatch, orderPath(id)+"status/", nil, map[string]string{"action": action}, nil)
}

// ListAllOrders returns every order of the café (staff only).
func (c *Client) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return list[domain.Order](ctx, c, "/orders/cafe/all/", nil)
}

// SetOrderStatus overrides an order's status (staff only).
func (c *Client) SetOrderStatus(ctx context.Context, id domain.ID, status string) error {
	path := "/orders/cafe/" + url.PathEscape(id.String()) + "/update/"
	return c.do(ctx, http.MethodPut, path, nil, map[string]string{"status": status}, nil)
}

// DeleteOrder removes an order (staff only).
func (c *Client) DeleteOrder(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, orderPath(id), nil, nil, nil)
}

func orderPath(id domain.ID) string {
	return "/orders/" + url.PathEscape(id.String()) + "/"
}
