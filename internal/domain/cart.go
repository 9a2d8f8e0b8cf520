package domain

import "github.com/shopspring/decimal"

// CartLine is one selected menu item. Quantity is always at least one; a line reaching zero is removed.
type CartLine struct {
	ID       ID              `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
}

// LineTotal returns price × quantity, treating negative values as zero.
func (l CartLine) LineTotal() decimal.Decimal {
	if l.Price.IsNegative() || l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DeliveryLocation is the pricing input describing where the order goes.
type DeliveryLocation struct {
	UseCustom      bool     `json:"use_custom"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Address        string   `json:"address"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// PricingResult is always derived from the cart and the delivery location, never stored.
type PricingResult struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	DistanceMeters float64         `json:"distance_meters"`
}
