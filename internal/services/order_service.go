package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cafe-delivery/storefront/internal/domain"
)

var errOrderAPIRequired = errors.New("order service: api client is required")

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the order does not exist or belongs to someone else.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderActionNotAllowed indicates the action is not available for the order's status.
var ErrOrderActionNotAllowed = errors.New("order service: action not allowed")

// ErrOrderUnavailable indicates the café API could not serve the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

var orderErrorKinds = apiErrorKinds{
	invalid:     ErrOrderInvalidInput,
	notFound:    ErrOrderNotFound,
	unavailable: ErrOrderUnavailable,
}

// OrderServiceDeps wires the collaborators of the order history.
type OrderServiceDeps struct {
	API       orderAPI
	Contact   CafeContact
	Money     MoneyFormatter
	Publisher OrderEventPublisher
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type orderService struct {
	api       orderAPI
	contact   CafeContact
	money     MoneyFormatter
	publisher OrderEventPublisher
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs the order history service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.API == nil {
		return nil, errOrderAPIRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderService{
		api:       deps.API,
		contact:   deps.Contact,
		money:     deps.Money,
		publisher: deps.Publisher,
		now:       func() time.Time { return clock().UTC() },
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

func (s *orderService) List(ctx context.Context) (OrderGroups, error) {
	orders, err := s.api.ListOrders(ctx)
	if err != nil {
		return OrderGroups{}, translateAPIError(err, orderErrorKinds)
	}
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order, s.money))
	}
	return GroupOrders(views), nil
}

func (s *orderService) Get(ctx context.Context, id domain.ID) (OrderView, error) {
	if id.IsZero() {
		return OrderView{}, ErrOrderInvalidInput
	}
	order, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, translateAPIError(err, orderErrorKinds)
	}
	return newOrderView(order, s.money), nil
}

// Act applies a customer action after checking it against the order's current status.
func (s *orderService) Act(ctx context.Context, id domain.ID, action string) (OrderActionResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case ActionCancel, ActionConfirmDelivery, ActionContactCafe:
	default:
		return OrderActionResult{}, ErrOrderInvalidInput
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return OrderActionResult{}, err
	}
	if !ActionAllowed(view.Status.Status, action) {
		return OrderActionResult{}, ErrOrderActionNotAllowed
	}

	if action == ActionContactCafe {
		contact := s.contact
		return OrderActionResult{Action: action, Contact: &contact}, nil
	}

	if err := s.api.OrderAction(ctx, id, action); err != nil {
		return OrderActionResult{}, translateAPIError(err, orderErrorKinds)
	}
	s.logger(ctx, "orders.action_applied", map[string]any{"orderId": id.String(), "action": action})

	refreshed, err := s.Get(ctx, id)
	if err != nil {
		s.logger(ctx, "orders.refresh_failed", map[string]any{"orderId": id.String(), "error": err.Error()})
		refreshed = view
	}
	publish(ctx, s.publisher, s.logger, OrderEvent{
		Type:       EventOrderAction,
		OrderID:    id,
		Status:     refreshed.Status.Status,
		Action:     action,
		OccurredAt: s.now(),
	})
	return OrderActionResult{Action: action, Order: &refreshed}, nil
}

func newOrderView(order domain.Order, money MoneyFormatter) OrderView {
	return OrderView{
		Order:  order,
		Status: DescribeStatus(order.Status),
		Total:  money.Format(order.TotalAmount),
	}
}
