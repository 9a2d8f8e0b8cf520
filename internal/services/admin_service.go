package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
)

var errAdminAPIRequired = errors.New("admin service: api client is required")

var (
	// ErrAdminInvalidInput indicates an unknown status, time range or malformed menu item.
	ErrAdminInvalidInput = errors.New("admin service: invalid input")
	// ErrAdminNotFound indicates the target record does not exist.
	ErrAdminNotFound = errors.New("admin service: not found")
	// ErrAdminUnavailable indicates the café API could not serve the request.
	ErrAdminUnavailable = errors.New("admin service: unavailable")
)

var adminErrorKinds = apiErrorKinds{
	invalid:     ErrAdminInvalidInput,
	notFound:    ErrAdminNotFound,
	unavailable: ErrAdminUnavailable,
}

// Analytics time ranges.
const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
)

const (
	topListSize        = 5
	recentOrdersSize   = 5
	unknownProductName = "Unknown Product"
	unknownProductType = "unknown"
)

var knownStatuses = []string{
	domain.StatusPending,
	domain.StatusConfirmed,
	domain.StatusPreparing,
	domain.StatusReady,
	domain.StatusOnTheWay,
	domain.StatusDelivered,
	domain.StatusCancelled,
}

// AdminServiceDeps wires the staff console.
type AdminServiceDeps struct {
	API       adminAPI
	Money     MoneyFormatter
	Publisher OrderEventPublisher
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type adminService struct {
	api       adminAPI
	money     MoneyFormatter
	publisher OrderEventPublisher
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

var _ AdminService = (*adminService)(nil)

// NewAdminService constructs the staff console service.
func NewAdminService(deps AdminServiceDeps) (AdminService, error) {
	if deps.API == nil {
		return nil, errAdminAPIRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &adminService{
		api:       deps.API,
		money:     deps.Money,
		publisher: deps.Publisher,
		now:       func() time.Time { return clock().UTC() },
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

// Dashboard returns the server summary, computing a reduced one from the order list when the
// stats endpoint fails.
func (s *adminService) Dashboard(ctx context.Context) (DashboardStats, error) {
	stats, err := s.api.DashboardStats(ctx)
	if err == nil {
		return stats, nil
	}
	if errors.Is(err, ErrSessionExpired) {
		return DashboardStats{}, ErrSessionExpired
	}
	s.logger(ctx, "admin.dashboard_stats_failed", map[string]any{"error": err.Error()})

	orders, listErr := s.api.ListAllOrders(ctx)
	if listErr != nil {
		return DashboardStats{}, translateAPIError(listErr, adminErrorKinds)
	}
	return fallbackDashboard(orders, s.now()), nil
}

func fallbackDashboard(orders []domain.Order, now time.Time) DashboardStats {
	today := now.Format(time.DateOnly)
	stats := DashboardStats{
		TotalOrders:  len(orders),
		TotalRevenue: decimal.Zero,
		RecentOrders: []domain.Order{},
		TopProducts:  []domain.ProductSales{},
		Fallback:     true,
	}
	delivered := 0
	for _, order := range orders {
		if isOngoing(order.Status) {
			stats.PendingOrders++
		}
		if order.Status != domain.StatusDelivered {
			continue
		}
		delivered++
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
		if order.DeliveredAt != nil && order.DeliveredAt.UTC().Format(time.DateOnly) == today {
			stats.DeliveredToday++
		}
	}
	stats.AverageOrderValue = decimal.Zero
	if delivered > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(delivered)))
	}
	sorted := newestFirst(orders)
	if len(sorted) > recentOrdersSize {
		sorted = sorted[:recentOrdersSize]
	}
	stats.RecentOrders = sorted
	return stats
}

// Analytics computes the report for the time range from the full order list. The menu and user
// lists only enrich the report; failures there are logged and skipped.
func (s *adminService) Analytics(ctx context.Context, timeRange string) (Analytics, error) {
	timeRange = strings.ToLower(strings.TrimSpace(timeRange))
	if timeRange == "" {
		timeRange = RangeWeek
	}
	now := s.now()
	start, ok := rangeStart(timeRange, now)
	if !ok {
		return Analytics{}, ErrAdminInvalidInput
	}

	orders, err := s.api.ListAllOrders(ctx)
	if err != nil {
		return Analytics{}, translateAPIError(err, adminErrorKinds)
	}
	menu, err := s.api.ListMenuItems(ctx, apiclient.MenuFilter{})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return Analytics{}, ErrSessionExpired
		}
		s.logger(ctx, "admin.analytics_menu_failed", map[string]any{"error": err.Error()})
	}
	users, err := s.api.ListUsers(ctx, apiclient.UserFilter{})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return Analytics{}, ErrSessionExpired
		}
		s.logger(ctx, "admin.analytics_users_failed", map[string]any{"error": err.Error()})
	}
	return buildAnalytics(timeRange, start, now, orders, menu, users), nil
}

func rangeStart(timeRange string, now time.Time) (time.Time, bool) {
	switch timeRange {
	case RangeDay:
		return now.AddDate(0, 0, -1), true
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, -1, 0), true
	case RangeYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

func buildAnalytics(timeRange string, start, now time.Time, orders []domain.Order, menu []domain.MenuItem, users []domain.User) Analytics {
	report := Analytics{
		TimeRange:     timeRange,
		Series:        []domain.DailyPoint{},
		TotalRevenue:  decimal.Zero,
		AvgOrderValue: decimal.Zero,
	}

	index := map[string]int{}
	for day := start; !day.After(now); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		index[key] = len(report.Series)
		report.Series = append(report.Series, domain.DailyPoint{
			Date:    key,
			Label:   day.Format("Jan 2"),
			Revenue: decimal.Zero,
		})
	}
	for _, order := range orders {
		if order.CreatedAt == nil {
			continue
		}
		i, ok := index[order.CreatedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		report.Series[i].Revenue = report.Series[i].Revenue.Add(order.TotalAmount)
		report.Series[i].Orders++
		report.TotalRevenue = report.TotalRevenue.Add(order.TotalAmount)
		report.TotalOrders++
	}
	if report.TotalOrders > 0 {
		report.AvgOrderValue = report.TotalRevenue.Div(decimal.NewFromInt(int64(report.TotalOrders)))
	}

	report.TopProducts = topProducts(orders, menu)
	report.TopCustomers = topCustomers(orders)
	for _, user := range users {
		if user.DateJoined != nil && !user.DateJoined.Before(start) {
			report.NewCustomers++
		}
	}
	return report
}

// topProducts ranks every ordered item by revenue across all orders.
func topProducts(orders []domain.Order, menu []domain.MenuItem) []domain.ProductSales {
	catalog := make(map[domain.ID]domain.MenuItem, len(menu))
	for _, item := range menu {
		catalog[item.ID] = item
	}
	sales := map[domain.ID]*domain.ProductSales{}
	var order []domain.ID
	for _, o := range orders {
		for _, line := range o.Items {
			id := line.MenuItem.ID
			if id.IsZero() {
				continue
			}
			entry, ok := sales[id]
			if !ok {
				entry = &domain.ProductSales{ID: id, Name: unknownProductName, Type: unknownProductType, Revenue: decimal.Zero}
				if item, found := catalog[id]; found {
					entry.Name = chooseFirstNonEmpty(item.Name, unknownProductName)
					entry.Type = chooseFirstNonEmpty(item.CategoryType, unknownProductType)
				} else if line.MenuItem.Item != nil {
					entry.Name = chooseFirstNonEmpty(line.MenuItem.Item.Name, unknownProductName)
					entry.Type = chooseFirstNonEmpty(line.MenuItem.Item.CategoryType, unknownProductType)
				}
				sales[id] = entry
				order = append(order, id)
			}
			entry.Sales += line.Quantity
			entry.Revenue = entry.Revenue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}
	out := make([]domain.ProductSales, 0, len(order))
	for _, id := range order {
		out = append(out, *sales[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue.GreaterThan(out[j].Revenue) })
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

func topCustomers(orders []domain.Order) []domain.CustomerSpend {
	spend := map[domain.ID]*domain.CustomerSpend{}
	var order []domain.ID
	for _, o := range orders {
		id := o.Customer.ID
		if id.IsZero() {
			continue
		}
		entry, ok := spend[id]
		if !ok {
			entry = &domain.CustomerSpend{CustomerID: id, TotalSpent: decimal.Zero}
			spend[id] = entry
			order = append(order, id)
		}
		entry.OrderCount++
		entry.TotalSpent = entry.TotalSpent.Add(o.TotalAmount)
	}
	out := make([]domain.CustomerSpend, 0, len(order))
	for _, id := range order {
		out = append(out, *spend[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSpent.GreaterThan(out[j].TotalSpent) })
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

// ListOrders returns every café order, newest first, optionally limited to one status.
func (s *adminService) ListOrders(ctx context.Context, status string) ([]OrderView, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !validStatus(status) {
		return nil, ErrAdminInvalidInput
	}
	orders, err := s.api.ListAllOrders(ctx)
	if err != nil {
		return nil, translateAPIError(err, adminErrorKinds)
	}
	views := []OrderView{}
	for _, order := range newestFirst(orders) {
		if status != "" && order.Status != status {
			continue
		}
		views = append(views, newOrderView(order, s.money))
	}
	return views, nil
}

func (s *adminService) UpdateOrderStatus(ctx context.Context, id domain.ID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if id.IsZero() || !validStatus(status) {
		return ErrAdminInvalidInput
	}
	if err := s.api.SetOrderStatus(ctx, id, status); err != nil {
		return translateAPIError(err, adminErrorKinds)
	}
	s.logger(ctx, "admin.order_status_updated", map[string]any{"orderId": id.String(), "status": status})
	publish(ctx, s.publisher, s.logger, OrderEvent{
		Type:       EventOrderStatusChanged,
		OrderID:    id,
		Status:     status,
		OccurredAt: s.now(),
	})
	return nil
}

func (s *adminService) DeleteOrder(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return ErrAdminInvalidInput
	}
	return translateAPIError(s.api.DeleteOrder(ctx, id), adminErrorKinds)
}

func (s *adminService) CreateMenuItem(ctx context.Context, input apiclient.MenuItemInput) (MenuItem, error) {
	input, err := normaliseMenuItem(input)
	if err != nil {
		return MenuItem{}, err
	}
	item, err := s.api.CreateMenuItem(ctx, input)
	if err != nil {
		return MenuItem{}, menuWriteError(err, "Failed to add food item")
	}
	s.logger(ctx, "admin.menu_item_created", map[string]any{"itemId": item.ID.String()})
	return item, nil
}

func (s *adminService) UpdateMenuItem(ctx context.Context, id domain.ID, input apiclient.MenuItemInput) (MenuItem, error) {
	if id.IsZero() {
		return MenuItem{}, ErrAdminInvalidInput
	}
	input, err := normaliseMenuItem(input)
	if err != nil {
		return MenuItem{}, err
	}
	item, err := s.api.UpdateMenuItem(ctx, id, input)
	if err != nil {
		return MenuItem{}, menuWriteError(err, "Failed to update food item")
	}
	return item, nil
}

func (s *adminService) DeleteMenuItem(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return ErrAdminInvalidInput
	}
	return translateAPIError(s.api.DeleteMenuItem(ctx, id), adminErrorKinds)
}

func (s *adminService) ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]User, error) {
	if filter.StaffOnly && filter.CustomersOnly {
		return nil, ErrAdminInvalidInput
	}
	users, err := s.api.ListUsers(ctx, filter)
	if err != nil {
		return nil, translateAPIError(err, adminErrorKinds)
	}
	return users, nil
}

func (s *adminService) DeleteUser(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return ErrAdminInvalidInput
	}
	return translateAPIError(s.api.DeleteUser(ctx, id), adminErrorKinds)
}

func normaliseMenuItem(input apiclient.MenuItemInput) (apiclient.MenuItemInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	verr := newValidationError(ErrAdminInvalidInput)
	if input.Name == "" {
		verr.add("name", "Name is required")
	}
	if input.Price.IsNegative() {
		verr.add("price", "Price must not be negative")
	}
	if input.Category.IsZero() {
		verr.add("category", "Category is required")
	}
	if input.PreparationTime < 0 {
		verr.add("preparation_time", "Preparation time must not be negative")
	}
	return input, verr.orNil()
}

// menuWriteError prefers the API's detail, then its first name error, then the fallback.
func menuWriteError(err error, fallback string) error {
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionExpired
	}
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok || apiErr.Status >= 500 {
		return userError(ErrAdminUnavailable, fallback, err)
	}
	if apiErr.Status == 403 {
		return userError(ErrForbidden, apiErr.Message(), err)
	}
	return userError(ErrAdminInvalidInput, chooseFirstNonEmpty(apiErr.Value("detail"), apiErr.Value("name"), fallback), err)
}

func validStatus(status string) bool {
	for _, known := range knownStatuses {
		if known == status {
			return true
		}
	}
	return false
}

func newestFirst(orders []domain.Order) []domain.Order {
	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return sorted
}
