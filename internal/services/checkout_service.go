package services

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

var (
	errCheckoutCartRequired    = errors.New("checkout service: cart service is required")
	errCheckoutPricingRequired = errors.New("checkout service: pricing engine is required")
	errCheckoutOrdersRequired  = errors.New("checkout service: order api is required")
)

var (
	// ErrCheckoutInvalidInput indicates a guard rejected the transition or the form input.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutInvalidStep indicates the operation is not available in the current step.
	ErrCheckoutInvalidStep = errors.New("checkout service: invalid step")
	// ErrCheckoutNoVisitor indicates the request carries no visitor id.
	ErrCheckoutNoVisitor = errors.New("checkout service: visitor missing")
	// ErrCheckoutRejected indicates the order API refused the submission.
	ErrCheckoutRejected = errors.New("checkout service: order rejected")
	// ErrCheckoutUnavailable indicates the order could not be placed.
	ErrCheckoutUnavailable = errors.New("checkout service: unavailable")
)

const (
	msgEmptyCart          = "Please add items to your cart first"
	msgAddressRequired    = "Please enter delivery address"
	msgPhoneInvalid       = "Please enter valid phone number (at least 10 digits)"
	msgCoordinatesInvalid = "Please enter valid latitude and longitude coordinates"
	msgLatitudeRange      = "Latitude must be between -90 and 90 degrees"
	msgLongitudeRange     = "Longitude must be between -180 and 180 degrees"
	msgPaymentMethod      = "Please select a payment method"
	msgInvalidMenuItem    = "Invalid menu item. Please refresh and try again."
	msgInvalidOrderData   = "Invalid order data. Please check all fields."
	msgPlaceOrderFailed   = "Failed to place order. Please try again."
	minPhoneDigits        = 10
)

type orderCreator interface {
	CreateOrder(ctx context.Context, submission domain.OrderSubmission) (domain.Order, error)
}

type defaultAddressFinder interface {
	DefaultAddress(ctx context.Context) (domain.Address, error)
}

// CheckoutServiceDeps wires the checkout state machine.
type CheckoutServiceDeps struct {
	Registry  *CheckoutRegistry
	Cart      CartService
	Pricing   *PricingEngine
	Orders    orderCreator
	Addresses defaultAddressFinder
	Sessions  repositories.SessionRepository
	Payments  PaymentService
	Money     MoneyFormatter
	// CafeAddress prefills the delivery address when the visitor has no default address.
	CafeAddress string
	Publisher   OrderEventPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	registry    *CheckoutRegistry
	cart        CartService
	pricing     *PricingEngine
	orders      orderCreator
	addresses   defaultAddressFinder
	sessions    repositories.SessionRepository
	payments    PaymentService
	money       MoneyFormatter
	cafeAddress string
	sanitizer   *bluemonday.Policy
	publisher   OrderEventPublisher
	now         func() time.Time
	logger      func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs the checkout state machine.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	if deps.Pricing == nil {
		return nil, errCheckoutPricingRequired
	}
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewCheckoutRegistry(DefaultCheckoutIdleTTL, clock)
	}
	return &checkoutService{
		registry:    registry,
		cart:        deps.Cart,
		pricing:     deps.Pricing,
		orders:      deps.Orders,
		addresses:   deps.Addresses,
		sessions:    deps.Sessions,
		payments:    deps.Payments,
		money:       deps.Money,
		cafeAddress: strings.TrimSpace(deps.CafeAddress),
		sanitizer:   bluemonday.StrictPolicy(),
		publisher:   deps.Publisher,
		now:         func() time.Time { return clock().UTC() },
		logger:      loggerOrNoop(deps.Logger),
	}, nil
}

func (s *checkoutService) Current(ctx context.Context) (CheckoutView, error) {
	var view CheckoutView
	err := s.withSession(ctx, func(session *domain.CheckoutSession) error {
		view = s.view(*session)
		return nil
	})
	return view, err
}

// Next advances one step when the current step's guard passes.
func (s *checkoutService) Next(ctx context.Context) (CheckoutView, error) {
	var view CheckoutView
	err := s.withSession(ctx, func(session *domain.CheckoutSession) error {
		switch session.Step {
		case domain.StepCartReview:
			if err := validateCart(session.Cart); err != nil {
				return err
			}
		case domain.StepDeliveryDetails:
			if err := validateDelivery(*session); err != nil {
				return err
			}
		default:
			return ErrCheckoutInvalidStep
		}
		session.Step++
		view = s.view(*session)
		return nil
	})
	return view, err
}

// Back moves one step back without any guard. The first step stays where it is.
func (s *checkoutService) Back(ctx context.Context) (CheckoutView, error) {
	var view CheckoutView
	err := s.withSession(ctx, func(session *domain.CheckoutSession) error {
		if session.Step > domain.StepCartReview {
			session.Step--
		}
		view = s.view(*session)
		return nil
	})
	return view, err
}

// UpdateDetails patches the delivery form. Values are kept as typed; they are only checked when
// leaving the delivery step or submitting.
func (s *checkoutService) UpdateDetails(ctx context.Context, input DeliveryDetailsInput) (CheckoutView, error) {
	var view CheckoutView
	err := s.withSession(ctx, func(session *domain.CheckoutSession) error {
		if input.PaymentMethod != nil && !input.PaymentMethod.Valid() {
			verr := newValidationError(ErrCheckoutInvalidInput)
			verr.add("payment_method", msgPaymentMethod)
			return verr
		}
		if input.Address != nil {
			session.Delivery.Address = *input.Address
		}
		if input.UseCustom != nil {
			session.Delivery.UseCustom = *input.UseCustom
		}
		if input.Latitude != nil {
			session.Delivery.Latitude = strings.TrimSpace(*input.Latitude)
		}
		if input.Longitude != nil {
			session.Delivery.Longitude = strings.TrimSpace(*input.Longitude)
		}
		if input.PhoneNumber != nil {
			session.PhoneNumber = strings.TrimSpace(*input.PhoneNumber)
		}
		if input.SpecialInstructions != nil {
			session.SpecialInstructions = *input.SpecialInstructions
		}
		if input.PaymentMethod != nil {
			session.PaymentMethod = *input.PaymentMethod
		}
		view = s.view(*session)
		return nil
	})
	return view, err
}

// Submit places the order from the review step. Cash orders clear the cart; online orders are
// handed to the payment gateway and keep the cart until the payment is confirmed.
func (s *checkoutService) Submit(ctx context.Context) (CheckoutResult, error) {
	visitor, ok := requestctx.Visitor(ctx)
	if !ok {
		return CheckoutResult{}, ErrCheckoutNoVisitor
	}
	entry := s.registry.acquire(visitor)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := s.prepare(ctx, entry); err != nil {
		return CheckoutResult{}, err
	}
	session := &entry.session
	if session.Step != domain.StepOrderReview {
		return CheckoutResult{}, ErrCheckoutInvalidStep
	}
	if err := validateCart(session.Cart); err != nil {
		return CheckoutResult{}, err
	}
	if err := validateDelivery(*session); err != nil {
		return CheckoutResult{}, err
	}

	quote := s.pricing.Quote(session.Cart, deliveryLocation(session.Delivery))
	submission := s.buildSubmission(*session, quote)
	order, err := s.orders.CreateOrder(ctx, submission)
	if err != nil {
		s.logger(ctx, "checkout.submit_failed", map[string]any{"error": err.Error()})
		return CheckoutResult{}, submitError(err)
	}

	method := session.PaymentMethod
	s.registry.discard(visitor, entry)
	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":       order.ID.String(),
		"paymentMethod": string(method),
		"total":         domain.Money(quote.Total),
	})
	publish(ctx, s.publisher, s.logger, OrderEvent{
		Type:          EventOrderPlaced,
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentMethod: string(method),
		Total:         domain.Money(quote.Total),
		UserID:        s.userID(ctx),
		OccurredAt:    s.now(),
	})

	result := CheckoutResult{Order: order, NextView: ViewOrderHistory}
	if method != domain.PaymentOnline {
		if err := s.cart.Clear(ctx); err != nil {
			s.logger(ctx, "checkout.cart_clear_failed", map[string]any{"error": err.Error()})
		}
		return result, nil
	}

	if s.payments == nil {
		result.PaymentError = "Online payment is not available"
		return result, nil
	}
	handoff, err := s.payments.Initialize(ctx, order.ID, quote.Total)
	if err != nil {
		result.PaymentError = paymentErrorMessage(err)
		return result, nil
	}
	result.Payment = &handoff
	result.NextView = ViewPayment
	return result, nil
}

func (s *checkoutService) Abandon(ctx context.Context) error {
	visitor, ok := requestctx.Visitor(ctx)
	if !ok {
		return ErrCheckoutNoVisitor
	}
	s.registry.discard(visitor, nil)
	return nil
}

// withSession runs fn under the visitor's session lock after refreshing the cart snapshot.
func (s *checkoutService) withSession(ctx context.Context, fn func(*domain.CheckoutSession) error) error {
	visitor, ok := requestctx.Visitor(ctx)
	if !ok {
		return ErrCheckoutNoVisitor
	}
	entry := s.registry.acquire(visitor)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := s.prepare(ctx, entry); err != nil {
		return err
	}
	return fn(&entry.session)
}

// prepare fills a fresh session with the visitor's defaults and reloads the live cart.
func (s *checkoutService) prepare(ctx context.Context, entry *checkoutEntry) error {
	if !entry.ready {
		entry.session = s.newSession(ctx)
		entry.ready = true
	}
	lines, err := s.cart.Load(ctx)
	if err != nil {
		return err
	}
	entry.session.Cart = lines
	entry.session.UpdatedAt = s.now()
	return nil
}

func (s *checkoutService) newSession(ctx context.Context) domain.CheckoutSession {
	session := domain.CheckoutSession{
		Step:          domain.StepCartReview,
		PaymentMethod: domain.PaymentCash,
		Delivery:      domain.DeliveryDetails{Address: s.cafeAddress},
	}
	if s.addresses != nil {
		if addr, err := s.addresses.DefaultAddress(ctx); err == nil && strings.TrimSpace(addr.FullAddress) != "" {
			session.Delivery.Address = addr.FullAddress
		}
	}
	if user := s.cachedUser(ctx); user != nil {
		session.PhoneNumber = user.PhoneNumber
	}
	return session
}

func (s *checkoutService) cachedUser(ctx context.Context) *domain.User {
	if s.sessions == nil {
		return nil
	}
	session, err := s.sessions.Load(ctx)
	if err != nil {
		return nil
	}
	return session.User
}

func (s *checkoutService) userID(ctx context.Context) string {
	if user := s.cachedUser(ctx); user != nil {
		return user.ID.String()
	}
	return ""
}

func (s *checkoutService) view(session domain.CheckoutSession) CheckoutView {
	quote := s.pricing.Quote(session.Cart, deliveryLocation(session.Delivery))
	cart := session.Cart
	if cart == nil {
		cart = []CartLine{}
	}
	return CheckoutView{
		Step:                session.Step,
		StepName:            session.Step.String(),
		Cart:                cart,
		Delivery:            session.Delivery,
		PhoneNumber:         session.PhoneNumber,
		SpecialInstructions: session.SpecialInstructions,
		PaymentMethod:       session.PaymentMethod,
		Quote:               quote,
		Display:             s.money.Display(quote),
		Currency:            s.money.Currency(),
	}
}

func (s *checkoutService) buildSubmission(session domain.CheckoutSession, quote domain.PricingResult) domain.OrderSubmission {
	items := make([]domain.OrderItemInput, 0, len(session.Cart))
	for _, line := range session.Cart {
		items = append(items, domain.OrderItemInput{
			MenuItem: line.ID,
			Quantity: line.Quantity,
			Price:    json.Number(line.Price.String()),
		})
	}

	rules := s.pricing.Rules()
	lat := strconv.FormatFloat(rules.OriginLatitude, 'f', -1, 64)
	lng := strconv.FormatFloat(rules.OriginLongitude, 'f', -1, 64)
	if session.Delivery.UseCustom {
		lat, lng = session.Delivery.Latitude, session.Delivery.Longitude
	}

	var distance *int64
	if quote.DistanceMeters > 0 {
		rounded := int64(math.Round(quote.DistanceMeters))
		distance = &rounded
	}

	method := session.PaymentMethod
	if !method.Valid() {
		method = domain.PaymentCash
	}
	return domain.OrderSubmission{
		Items:               items,
		DeliveryAddress:     s.sanitize(session.Delivery.Address),
		DeliveryLatitude:    lat,
		DeliveryLongitude:   lng,
		SpecialInstructions: s.sanitize(session.SpecialInstructions),
		PhoneNumber:         strings.TrimSpace(session.PhoneNumber),
		PaymentMethod:       method,
		DeliveryDistance:    distance,
		DeliveryFee:         domain.Money(quote.DeliveryFee),
	}
}

// sanitize strips markup from free text; entities produced by the policy are decoded again so
// the API receives plain text.
func (s *checkoutService) sanitize(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func validateCart(lines []CartLine) error {
	if len(lines) == 0 {
		verr := newValidationError(ErrCheckoutInvalidInput)
		verr.add("cart", msgEmptyCart)
		return verr
	}
	return nil
}

// validateDelivery checks the delivery step in display order and reports every failing field.
func validateDelivery(session domain.CheckoutSession) error {
	verr := newValidationError(ErrCheckoutInvalidInput)
	if strings.TrimSpace(session.Delivery.Address) == "" {
		verr.add("delivery_address", msgAddressRequired)
	}
	if strings.TrimSpace(session.PhoneNumber) == "" || countDigits(session.PhoneNumber) < minPhoneDigits {
		verr.add("phone_number", msgPhoneInvalid)
	}
	if session.Delivery.UseCustom {
		lat, latErr := parseCoordinate(session.Delivery.Latitude)
		lng, lngErr := parseCoordinate(session.Delivery.Longitude)
		switch {
		case latErr != nil || lngErr != nil:
			if latErr != nil {
				verr.add("latitude", msgCoordinatesInvalid)
			}
			if lngErr != nil {
				verr.add("longitude", msgCoordinatesInvalid)
			}
		default:
			if lat < -90 || lat > 90 {
				verr.add("latitude", msgLatitudeRange)
			}
			if lng < -180 || lng > 180 {
				verr.add("longitude", msgLongitudeRange)
			}
		}
	}
	return verr.orNil()
}

func parseCoordinate(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if !finite(value) {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}

// deliveryLocation converts the form into a pricing input. Unparsable coordinates price as an
// unknown distance.
func deliveryLocation(details domain.DeliveryDetails) domain.DeliveryLocation {
	loc := domain.DeliveryLocation{UseCustom: details.UseCustom, Address: details.Address}
	if !details.UseCustom {
		return loc
	}
	lat, latErr := parseCoordinate(details.Latitude)
	lng, lngErr := parseCoordinate(details.Longitude)
	if latErr == nil && lngErr == nil && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
		loc.Latitude = &lat
		loc.Longitude = &lng
	}
	return loc
}

// submitError maps an order API failure to what the visitor sees.
func submitError(err error) error {
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionExpired
	}
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		return userError(ErrCheckoutUnavailable, msgPlaceOrderFailed, err)
	}
	switch apiErr.Status {
	case 400:
		if len(apiErr.Fields) > 0 {
			verr := newValidationError(ErrCheckoutRejected)
			for _, field := range apiErr.Fields {
				if len(field.Messages) == 0 {
					continue
				}
				message := field.Messages[0]
				if field.Field == "items" && strings.Contains(message, "menu_item") {
					message = msgInvalidMenuItem
				}
				verr.add(field.Field, message)
			}
			if !verr.empty() {
				return verr
			}
		}
		if apiErr.Text != "" {
			return userError(ErrCheckoutRejected, apiErr.Text, err)
		}
		return userError(ErrCheckoutRejected, msgInvalidOrderData, err)
	case 401:
		return ErrSessionExpired
	default:
		return userError(ErrCheckoutUnavailable, msgPlaceOrderFailed, err)
	}
}

func paymentErrorMessage(err error) string {
	if uerr, ok := AsUserError(err); ok {
		return uerr.Message()
	}
	return paymentInitFailedMessage
}
