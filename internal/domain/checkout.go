package domain

import "time"

// CheckoutStep enumerates the linear checkout states.
type CheckoutStep int

const (
	StepCartReview      CheckoutStep = 1
	StepDeliveryDetails CheckoutStep = 2
	StepOrderReview     CheckoutStep = 3
)

// String returns the step name used in API responses.
func (s CheckoutStep) String() string {
	switch s {
	case StepCartReview:
		return "cart_review"
	case StepDeliveryDetails:
		return "delivery_details"
	case StepOrderReview:
		return "order_review"
	default:
		return "unknown"
	}
}

// PaymentMethod selects cash on delivery or the hosted online checkout.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

// Valid reports whether the method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

// DeliveryDetails holds the delivery form exactly as entered. Coordinates stay raw text until
// validated so a rejected transition never loses what the visitor typed.
type DeliveryDetails struct {
	Address   string `json:"address"`
	UseCustom bool   `json:"use_custom"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// CheckoutSession is the transient state of one visitor's checkout. It lives in process memory only.
type CheckoutSession struct {
	Step                CheckoutStep    `json:"step"`
	Cart                []CartLine      `json:"cart"`
	Delivery            DeliveryDetails `json:"delivery"`
	PhoneNumber         string          `json:"phone_number"`
	SpecialInstructions string          `json:"special_instructions"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
