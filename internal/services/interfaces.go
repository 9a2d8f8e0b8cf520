package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/payments"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CartLine           = domain.CartLine
	DeliveryLocation   = domain.DeliveryLocation
	PricingResult      = domain.PricingResult
	CheckoutSession    = domain.CheckoutSession
	DeliveryDetails    = domain.DeliveryDetails
	Order              = domain.Order
	MenuItem           = domain.MenuItem
	Category           = domain.Category
	User               = domain.User
	Address            = domain.Address
	AuthSession        = domain.AuthSession
	PendingPayment     = domain.PendingPayment
	DashboardStats     = domain.DashboardStats
	Analytics          = domain.Analytics
	SystemHealthReport = domain.SystemHealthReport
)

// CartService is the visitor's persistent cart.
type CartService interface {
	Load(ctx context.Context) ([]CartLine, error)
	Save(ctx context.Context, lines []CartLine) error
	AddOrIncrement(ctx context.Context, item CartItemInput) ([]CartLine, error)
	SetQuantity(ctx context.Context, id domain.ID, quantity int) ([]CartLine, error)
	Remove(ctx context.Context, id domain.ID) ([]CartLine, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// CartItemInput identifies the menu item to add. Name, price and image are taken from the menu
// when a menu lookup is wired; otherwise the supplied values are used.
type CartItemInput struct {
	ID    domain.ID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// CheckoutService drives the three-step checkout of the current visitor.
type CheckoutService interface {
	Current(ctx context.Context) (CheckoutView, error)
	Next(ctx context.Context) (CheckoutView, error)
	Back(ctx context.Context) (CheckoutView, error)
	UpdateDetails(ctx context.Context, input DeliveryDetailsInput) (CheckoutView, error)
	Submit(ctx context.Context) (CheckoutResult, error)
	Abandon(ctx context.Context) error
}

// DeliveryDetailsInput patches the checkout form; nil fields are left untouched.
type DeliveryDetailsInput struct {
	Address             *string               `json:"delivery_address"`
	UseCustom           *bool                 `json:"use_custom_location"`
	Latitude            *string               `json:"latitude"`
	Longitude           *string               `json:"longitude"`
	PhoneNumber         *string               `json:"phone_number"`
	SpecialInstructions *string               `json:"special_instructions"`
	PaymentMethod       *domain.PaymentMethod `json:"payment_method"`
}

// MoneyDisplay holds locale-formatted amounts.
type MoneyDisplay struct {
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"delivery_fee"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

// CheckoutView is the checkout state rendered for the UI.
type CheckoutView struct {
	Step                domain.CheckoutStep    `json:"step"`
	StepName            string                 `json:"step_name"`
	Cart                []CartLine             `json:"cart"`
	Delivery            domain.DeliveryDetails `json:"delivery"`
	PhoneNumber         string                 `json:"phone_number"`
	SpecialInstructions string                 `json:"special_instructions"`
	PaymentMethod       domain.PaymentMethod   `json:"payment_method"`
	Quote               PricingResult          `json:"quote"`
	Display             MoneyDisplay           `json:"display"`
	Currency            string                 `json:"currency"`
}

// Views the UI should navigate to after an operation.
const (
	ViewOrderHistory = "order-history"
	ViewPayment      = "payment"
	ViewCart         = "cart"
	ViewLogin        = "login"
)

// CheckoutResult is the outcome of a successful order submission.
type CheckoutResult struct {
	Order    Order           `json:"order"`
	NextView string          `json:"next_view"`
	Payment  *PaymentHandoff `json:"payment,omitempty"`
	// PaymentError is set when the order was created but the hosted checkout could not be opened.
	PaymentError string `json:"payment_error,omitempty"`
}

// PaymentService hands orders to the hosted checkout and reconciles the return.
type PaymentService interface {
	Initialize(ctx context.Context, orderID domain.ID, amount decimal.Decimal) (PaymentHandoff, error)
	HandleReturn(ctx context.Context, params PaymentReturn) (PaymentOutcome, error)
	HandleCancel(ctx context.Context) (PaymentOutcome, error)
}

// PaymentHandoff tells the UI where to redirect.
type PaymentHandoff struct {
	CheckoutURL string    `json:"checkout_url"`
	TxRef       string    `json:"tx_ref"`
	OrderID     domain.ID `json:"order_id"`
	Amount      string    `json:"amount"`
	Provider    string    `json:"provider"`
}

// PaymentReturn carries the query parameters of the return landing.
type PaymentReturn struct {
	TxRef     string
	Status    string
	SessionID string
}

// PaymentOutcome is the result of a return or cancel landing.
type PaymentOutcome struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	NextView   string    `json:"next_view"`
	OrderID    domain.ID `json:"order_id,omitempty"`
	Reconciled bool      `json:"reconciled,omitempty"`
}

// SessionService manages sign-in state for the visitor.
type SessionService interface {
	Login(ctx context.Context, creds apiclient.Credentials) (AuthSession, error)
	Register(ctx context.Context, reg apiclient.Registration) (AuthSession, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (AuthSession, error)
	Current(ctx context.Context) (AuthSession, error)
	IsExpired(token string) bool
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (User, error)
	ChangePassword(ctx context.Context, change apiclient.PasswordChange) error
	ResolveIdentity(ctx context.Context) (*auth.Identity, error)
}

// OrderService exposes the customer's order history.
type OrderService interface {
	List(ctx context.Context) (OrderGroups, error)
	Get(ctx context.Context, id domain.ID) (OrderView, error)
	Act(ctx context.Context, id domain.ID, action string) (OrderActionResult, error)
}

// OrderView pairs an order with its presentation.
type OrderView struct {
	Order  Order      `json:"order"`
	Status StatusInfo `json:"status_info"`
	Total  string     `json:"total_display"`
}

// OrderGroups buckets orders into the history tabs.
type OrderGroups struct {
	DefaultTab string                 `json:"default_tab"`
	Tabs       map[string][]OrderView `json:"tabs"`
	Counts     map[string]int         `json:"counts"`
}

// CafeContact is returned by the contact_cafe action.
type CafeContact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
}

// OrderActionResult carries the refreshed order, or the café contact for contact_cafe.
type OrderActionResult struct {
	Action  string       `json:"action"`
	Order   *OrderView   `json:"order,omitempty"`
	Contact *CafeContact `json:"contact,omitempty"`
}

// MenuService reads the café menu.
type MenuService interface {
	ListItems(ctx context.Context, filter apiclient.MenuFilter) ([]MenuItem, error)
	GetItem(ctx context.Context, id domain.ID) (MenuItem, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// AddressService manages saved delivery addresses.
type AddressService interface {
	List(ctx context.Context) ([]Address, error)
	Default(ctx context.Context) (Address, error)
	Create(ctx context.Context, address Address) (Address, error)
	Update(ctx context.Context, id domain.ID, address Address) (Address, error)
	Delete(ctx context.Context, id domain.ID) error
	SetDefault(ctx context.Context, id domain.ID) error
}

// ThemeService persists the dark mode preference.
type ThemeService interface {
	DarkMode(ctx context.Context) (bool, error)
	SetDarkMode(ctx context.Context, enabled bool) (bool, error)
	Toggle(ctx context.Context) (bool, error)
}

// AdminService backs the staff console.
type AdminService interface {
	Dashboard(ctx context.Context) (DashboardStats, error)
	Analytics(ctx context.Context, timeRange string) (Analytics, error)
	ListOrders(ctx context.Context, status string) ([]OrderView, error)
	UpdateOrderStatus(ctx context.Context, id domain.ID, status string) error
	DeleteOrder(ctx context.Context, id domain.ID) error
	CreateMenuItem(ctx context.Context, input apiclient.MenuItemInput) (MenuItem, error)
	UpdateMenuItem(ctx context.Context, id domain.ID, input apiclient.MenuItemInput) (MenuItem, error)
	DeleteMenuItem(ctx context.Context, id domain.ID) error
	ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]User, error)
	DeleteUser(ctx context.Context, id domain.ID) error
}

// SystemService exposes health reports.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Collaborator contracts satisfied by *apiclient.Client.

type authAPI interface {
	Login(ctx context.Context, creds apiclient.Credentials) (apiclient.Tokens, error)
	Register(ctx context.Context, reg apiclient.Registration) error
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context) (domain.User, error)
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (domain.User, error)
	ChangePassword(ctx context.Context, change apiclient.PasswordChange) error
}

type menuAPI interface {
	ListMenuItems(ctx context.Context, filter apiclient.MenuFilter) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, id domain.ID) (domain.MenuItem, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type orderAPI interface {
	CreateOrder(ctx context.Context, submission domain.OrderSubmission) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id domain.ID) (domain.Order, error)
	OrderAction(ctx context.Context, id domain.ID, action string) error
}

type addressAPI interface {
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	DefaultAddress(ctx context.Context) (domain.Address, error)
	CreateAddress(ctx context.Context, address domain.Address) (domain.Address, error)
	UpdateAddress(ctx context.Context, id domain.ID, address domain.Address) (domain.Address, error)
	DeleteAddress(ctx context.Context, id domain.ID) error
	SetDefaultAddress(ctx context.Context, id domain.ID) error
}

type adminAPI interface {
	DashboardStats(ctx context.Context) (domain.DashboardStats, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	SetOrderStatus(ctx context.Context, id domain.ID, status string) error
	DeleteOrder(ctx context.Context, id domain.ID) error
	ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]domain.User, error)
	DeleteUser(ctx context.Context, id domain.ID) error
	ListMenuItems(ctx context.Context, filter apiclient.MenuFilter) ([]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, input apiclient.MenuItemInput) (domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id domain.ID, input apiclient.MenuItemInput) (domain.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id domain.ID) error
}

type paymentGateway interface {
	Provider() string
	Initialize(ctx context.Context, req payments.InitRequest) (payments.Session, error)
	Verify(ctx context.Context, req payments.VerifyRequest) (payments.Verification, error)
}

// Event types published on the order topic.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderAction        = "order.action"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentInitialized = "payment.initialized"
	EventPaymentVerified    = "payment.verified"
	EventPaymentReconciled  = "payment.reconciled"
)

// OrderEvent is the message published when an order or its payment changes.
type OrderEvent struct {
	EventID       string    `json:"eventId"`
	Type          string    `json:"type"`
	OrderID       domain.ID `json:"orderId"`
	Status        string    `json:"status,omitempty"`
	Action        string    `json:"action,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Total         string    `json:"total,omitempty"`
	TxRef         string    `json:"txRef,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// OrderEventPublisher delivers order events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}
