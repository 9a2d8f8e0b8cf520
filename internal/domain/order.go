package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order status values emitted by the café API.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusOnTheWay  = "on_the_way"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Order is read-only to the storefront; it only changes through API calls.
type Order struct {
	ID                  ID              `json:"id"`
	OrderNumber         string          `json:"order_number"`
	Status              string          `json:"status"`
	Items               []OrderItem     `json:"items"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	DeliveryAddress     string          `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	PhoneNumber         string          `json:"phone_number,omitempty"`
	PaymentMethod       string          `json:"payment_method,omitempty"`
	Customer            CustomerRef     `json:"customer"`
	CreatedAt           *time.Time      `json:"created_at,omitempty"`
	ConfirmedAt         *time.Time      `json:"confirmed_at,omitempty"`
	PreparedAt          *time.Time      `json:"prepared_at,omitempty"`
	DispatchedAt        *time.Time      `json:"dispatched_at,omitempty"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	ID              ID              `json:"id,omitempty"`
	MenuItem        MenuItemRef     `json:"menu_item"`
	MenuItemDetails *MenuItem       `json:"menu_item_details,omitempty"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	SpecialRequest  string          `json:"special_request,omitempty"`
}

// MenuItemRef is either a bare menu item id or the embedded item.
type MenuItemRef struct {
	ID   ID
	Item *MenuItem
}

func (r MenuItemRef) MarshalJSON() ([]byte, error) {
	if r.Item != nil {
		return json.Marshal(r.Item)
	}
	return r.ID.MarshalJSON()
}

func (r *MenuItemRef) UnmarshalJSON(data []byte) error {
	var item MenuItem
	id, embedded, err := refOrObject(data, &item)
	if err != nil {
		return err
	}
	r.ID = id
	if embedded {
		r.Item = &item
	}
	return nil
}

// CustomerRef is either a bare user id or the embedded user.
type CustomerRef struct {
	ID   ID
	User *User
}

func (r CustomerRef) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	return r.ID.MarshalJSON()
}

func (r *CustomerRef) UnmarshalJSON(data []byte) error {
	var user User
	id, embedded, err := refOrObject(data, &user)
	if err != nil {
		return err
	}
	r.ID = id
	if embedded {
		r.User = &user
	}
	return nil
}

// OrderItemInput is one item of the order submission payload.
type OrderItemInput struct {
	MenuItem ID          `json:"menu_item"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

// OrderSubmission is the payload posted to the order collaborator.
type OrderSubmission struct {
	Items               []OrderItemInput `json:"items"`
	DeliveryAddress     string           `json:"delivery_address"`
	DeliveryLatitude    string           `json:"delivery_latitude"`
	DeliveryLongitude   string           `json:"delivery_longitude"`
	SpecialInstructions string           `json:"special_instructions"`
	PhoneNumber         string           `json:"phone_number"`
	PaymentMethod       PaymentMethod    `json:"payment_method"`
	DeliveryDistance    *int64           `json:"delivery_distance"`
	DeliveryFee         string           `json:"delivery_fee"`
}
