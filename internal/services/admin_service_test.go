package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
)

type stubAdminAPI struct {
	stats       domain.DashboardStats
	statsErr    error
	orders      []domain.Order
	ordersErr   error
	menu        []domain.MenuItem
	menuErr     error
	users       []domain.User
	usersErr    error
	statusCalls []string
	statusErr   error
	deleted     []domain.ID
	writeErr    error
	created     []apiclient.MenuItemInput
	userFilter  apiclient.UserFilter
}

func (s *stubAdminAPI) DashboardStats(context.Context) (domain.DashboardStats, error) {
	return s.stats, s.statsErr
}

func (s *stubAdminAPI) ListAllOrders(context.Context) ([]domain.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubAdminAPI) SetOrderStatus(_ context.Context, id domain.ID, status string) error {
	s.statusCalls = append(s.statusCalls, id.String()+":"+status)
	return s.statusErr
}

func (s *stubAdminAPI) DeleteOrder(_ context.Context, id domain.ID) error {
	s.deleted = append(s.deleted, id)
	return s.writeErr
}

func (s *stubAdminAPI) ListUsers(_ context.Context, filter apiclient.UserFilter) ([]domain.User, error) {
	s.userFilter = filter
	return s.users, s.usersErr
}

func (s *stubAdminAPI) DeleteUser(_ context.Context, id domain.ID) error {
	s.deleted = append(s.deleted, id)
	return s.writeErr
}

func (s *stubAdminAPI) ListMenuItems(context.Context, apiclient.MenuFilter) ([]domain.MenuItem, error) {
	return s.menu, s.menuErr
}

func (s *stubAdminAPI) CreateMenuItem(_ context.Context, input apiclient.MenuItemInput) (domain.MenuItem, error) {
	s.created = append(s.created, input)
	if s.writeErr != nil {
		return domain.MenuItem{}, s.writeErr
	}
	return domain.MenuItem{ID: "55", Name: input.Name, Price: input.Price}, nil
}

func (s *stubAdminAPI) UpdateMenuItem(_ context.Context, id domain.ID, input apiclient.MenuItemInput) (domain.MenuItem, error) {
	if s.writeErr != nil {
		return domain.MenuItem{}, s.writeErr
	}
	return domain.MenuItem{ID: id, Name: input.Name, Price: input.Price}, nil
}

func (s *stubAdminAPI) DeleteMenuItem(_ context.Context, id domain.ID) error {
	s.deleted = append(s.deleted, id)
	return s.writeErr
}

var adminNow = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func newTestAdminService(t *testing.T, api *stubAdminAPI, publisher *recordingPublisher) AdminService {
	t.Helper()
	deps := AdminServiceDeps{
		API:   api,
		Money: NewMoneyFormatter("ETB", "en"),
		Clock: fixedClock(adminNow),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	svc, err := NewAdminService(deps)
	require.NoError(t, err)
	return svc
}

func adminOrder(id, status, total string, created time.Time) domain.Order {
	return domain.Order{
		ID:          domain.ID(id),
		Status:      status,
		TotalAmount: decimal.RequireFromString(total),
		CreatedAt:   timePtr(created),
	}
}

func TestNewAdminServiceRequiresAPI(t *testing.T) {
	_, err := NewAdminService(AdminServiceDeps{})
	require.ErrorIs(t, err, errAdminAPIRequired)
}

func TestDashboardReturnsServerStats(t *testing.T) {
	api := &stubAdminAPI{stats: domain.DashboardStats{TotalOrders: 42, TotalRevenue: decimal.RequireFromString("900")}}
	svc := newTestAdminService(t, api, nil)

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalOrders)
	assert.False(t, stats.Fallback)
}

func TestDashboardFallsBackToOrderList(t *testing.T) {
	deliveredToday := adminOrder("1", domain.StatusDelivered, "30", adminNow.Add(-3*time.Hour))
	deliveredToday.DeliveredAt = timePtr(adminNow.Add(-time.Hour))
	deliveredEarlier := adminOrder("2", domain.StatusDelivered, "10", adminNow.AddDate(0, 0, -3))
	deliveredEarlier.DeliveredAt = timePtr(adminNow.AddDate(0, 0, -3))
	orders := []domain.Order{
		deliveredEarlier,
		adminOrder("3", domain.StatusPending, "12", adminNow.Add(-30*time.Minute)),
		adminOrder("4", domain.StatusOnTheWay, "8", adminNow.Add(-2*time.Hour)),
		adminOrder("5", domain.StatusCancelled, "99", adminNow.AddDate(0, 0, -1)),
		deliveredToday,
		adminOrder("6", domain.StatusPreparing, "5", adminNow.Add(-10*time.Minute)),
	}
	api := &stubAdminAPI{statsErr: &apiclient.APIError{Status: 500}, orders: orders}
	svc := newTestAdminService(t, api, nil)

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Fallback)
	assert.Equal(t, 6, stats.TotalOrders)
	assert.Equal(t, 3, stats.PendingOrders)
	assert.Equal(t, 1, stats.DeliveredToday)
	assert.Equal(t, "40", stats.TotalRevenue.String())
	assert.Equal(t, "20", stats.AverageOrderValue.String())
	require.Len(t, stats.RecentOrders, 5)
	assert.Equal(t, domain.ID("6"), stats.RecentOrders[0].ID)
	assert.Equal(t, domain.ID("3"), stats.RecentOrders[1].ID)
}

func TestDashboardSessionExpiredSkipsFallback(t *testing.T) {
	api := &stubAdminAPI{statsErr: ErrSessionExpired}
	svc := newTestAdminService(t, api, nil)

	_, err := svc.Dashboard(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestDashboardFallbackFailureIsUnavailable(t *testing.T) {
	api := &stubAdminAPI{statsErr: errBoom, ordersErr: errBoom}
	svc := newTestAdminService(t, api, nil)

	_, err := svc.Dashboard(context.Background())
	require.ErrorIs(t, err, ErrAdminUnavailable)
}

func TestAnalyticsWeek(t *testing.T) {
	joinedRecently := adminNow.AddDate(0, 0, -2)
	joinedLongAgo := adminNow.AddDate(-1, 0, 0)
	first := adminOrder("1", domain.StatusDelivered, "20", adminNow.AddDate(0, 0, -1))
	first.Customer = domain.CustomerRef{ID: "7"}
	first.Items = []domain.OrderItem{
		{MenuItem: domain.MenuItemRef{ID: "1"}, Quantity: 2, Price: decimal.RequireFromString("10")},
	}
	second := adminOrder("2", domain.StatusPending, "15", adminNow)
	second.Customer = domain.CustomerRef{ID: "8"}
	second.Items = []domain.OrderItem{
		{MenuItem: domain.MenuItemRef{ID: "2", Item: &domain.MenuItem{ID: "2", Name: "Macchiato", CategoryType: "drink"}}, Quantity: 3, Price: decimal.RequireFromString("5")},
	}
	old := adminOrder("3", domain.StatusDelivered, "100", adminNow.AddDate(0, -2, 0))
	old.Customer = domain.CustomerRef{ID: "7"}
	old.Items = []domain.OrderItem{
		{MenuItem: domain.MenuItemRef{ID: "9"}, Quantity: 1, Price: decimal.RequireFromString("100")},
	}
	api := &stubAdminAPI{
		orders: []domain.Order{first, second, old},
		menu:   []domain.MenuItem{{ID: "1", Name: "Burger", CategoryType: "food"}},
		users:  []domain.User{{ID: "7", DateJoined: &joinedLongAgo}, {ID: "8", DateJoined: &joinedRecently}},
	}
	svc := newTestAdminService(t, api, nil)

	report, err := svc.Analytics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, RangeWeek, report.TimeRange)
	require.Len(t, report.Series, 8)
	assert.Equal(t, "2024-06-03", report.Series[0].Date)
	assert.Equal(t, "Jun 3", report.Series[0].Label)
	last := report.Series[len(report.Series)-1]
	assert.Equal(t, "2024-06-10", last.Date)
	assert.Equal(t, 1, last.Orders)
	assert.Equal(t, "15", last.Revenue.String())

	assert.Equal(t, 2, report.TotalOrders)
	assert.Equal(t, "35", report.TotalRevenue.String())
	assert.Equal(t, "17.5", report.AvgOrderValue.String())
	assert.Equal(t, 1, report.NewCustomers)

	require.Len(t, report.TopProducts, 3)
	assert.Equal(t, "Unknown Product", report.TopProducts[0].Name)
	assert.Equal(t, "unknown", report.TopProducts[0].Type)
	assert.Equal(t, "Burger", report.TopProducts[1].Name)
	assert.Equal(t, 2, report.TopProducts[1].Sales)
	assert.Equal(t, "Macchiato", report.TopProducts[2].Name)
	assert.Equal(t, "drink", report.TopProducts[2].Type)

	require.Len(t, report.TopCustomers, 2)
	assert.Equal(t, domain.ID("7"), report.TopCustomers[0].CustomerID)
	assert.Equal(t, 2, report.TopCustomers[0].OrderCount)
	assert.Equal(t, "120", report.TopCustomers[0].TotalSpent.String())
}

func TestAnalyticsRejectsUnknownRange(t *testing.T) {
	svc := newTestAdminService(t, &stubAdminAPI{}, nil)

	_, err := svc.Analytics(context.Background(), "decade")
	require.ErrorIs(t, err, ErrAdminInvalidInput)
}

func TestAnalyticsToleratesMenuFailure(t *testing.T) {
	api := &stubAdminAPI{menuErr: errBoom, usersErr: errBoom}
	svc := newTestAdminService(t, api, nil)

	report, err := svc.Analytics(context.Background(), RangeDay)
	require.NoError(t, err)
	assert.Len(t, report.Series, 2)
	assert.Empty(t, report.TopProducts)
}

func TestListOrdersFiltersAndSorts(t *testing.T) {
	api := &stubAdminAPI{orders: []domain.Order{
		adminOrder("1", domain.StatusPending, "10", adminNow.Add(-2*time.Hour)),
		adminOrder("2", domain.StatusDelivered, "10", adminNow.Add(-time.Hour)),
		adminOrder("3", domain.StatusPending, "10", adminNow),
	}}
	svc := newTestAdminService(t, api, nil)

	views, err := svc.ListOrders(context.Background(), "Pending")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, domain.ID("3"), views[0].Order.ID)
	assert.Equal(t, domain.ID("1"), views[1].Order.ID)

	_, err = svc.ListOrders(context.Background(), "lost")
	require.ErrorIs(t, err, ErrAdminInvalidInput)
}

func TestUpdateOrderStatusPublishes(t *testing.T) {
	api := &stubAdminAPI{}
	publisher := &recordingPublisher{}
	svc := newTestAdminService(t, api, publisher)

	require.NoError(t, svc.UpdateOrderStatus(context.Background(), "12", "on_the_way"))
	assert.Equal(t, []string{"12:on_the_way"}, api.statusCalls)
	assert.Equal(t, []string{EventOrderStatusChanged}, publisher.types())

	err := svc.UpdateOrderStatus(context.Background(), "12", "teleported")
	require.ErrorIs(t, err, ErrAdminInvalidInput)
	assert.Len(t, api.statusCalls, 1)
}

func TestUpdateOrderStatusForbidden(t *testing.T) {
	api := &stubAdminAPI{statusErr: &apiclient.APIError{Status: 403, Text: "Only cafe staff can update orders"}}
	svc := newTestAdminService(t, api, nil)

	err := svc.UpdateOrderStatus(context.Background(), "12", "ready")
	require.ErrorIs(t, err, ErrForbidden)
	userErr, ok := AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, "Only cafe staff can update orders", userErr.Message())
}

func TestCreateMenuItemValidates(t *testing.T) {
	api := &stubAdminAPI{}
	svc := newTestAdminService(t, api, nil)

	_, err := svc.CreateMenuItem(context.Background(), apiclient.MenuItemInput{Price: decimal.RequireFromString("-1")})
	require.ErrorIs(t, err, ErrAdminInvalidInput)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Name is required", verr.Message())
	assert.Contains(t, verr.Fields(), "price")
	assert.Contains(t, verr.Fields(), "category")
	assert.Empty(t, api.created)

	item, err := svc.CreateMenuItem(context.Background(), apiclient.MenuItemInput{
		Name:     "  Shiro  ",
		Price:    decimal.RequireFromString("120"),
		Category: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("55"), item.ID)
	assert.Equal(t, "Shiro", api.created[0].Name)
}

func TestMenuWriteErrorMessages(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
		kind    error
	}{
		{"detail", &apiclient.APIError{Status: 400, Fields: []apiclient.FieldError{{Field: "detail", Messages: []string{"Bad image"}}}}, "Bad image", ErrAdminInvalidInput},
		{"name", &apiclient.APIError{Status: 400, Fields: []apiclient.FieldError{{Field: "name", Messages: []string{"Name taken"}}}}, "Name taken", ErrAdminInvalidInput},
		{"fallback", &apiclient.APIError{Status: 400}, "Failed to add food item", ErrAdminInvalidInput},
		{"server", &apiclient.APIError{Status: 502}, "Failed to add food item", ErrAdminUnavailable},
		{"network", errors.New("dial tcp: refused"), "Failed to add food item", ErrAdminUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAdminAPI{writeErr: tc.err}
			svc := newTestAdminService(t, api, nil)

			_, err := svc.CreateMenuItem(context.Background(), apiclient.MenuItemInput{Name: "Tea", Category: "1"})
			require.ErrorIs(t, err, tc.kind)
			userErr, ok := AsUserError(err)
			require.True(t, ok)
			assert.Equal(t, tc.message, userErr.Message())
		})
	}
}

func TestUpdateMenuItemFallbackMessage(t *testing.T) {
	api := &stubAdminAPI{writeErr: &apiclient.APIError{Status: 400}}
	svc := newTestAdminService(t, api, nil)

	_, err := svc.UpdateMenuItem(context.Background(), "4", apiclient.MenuItemInput{Name: "Tea", Category: "1"})
	userErr, ok := AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to update food item", userErr.Message())
}

func TestDeleteRequiresID(t *testing.T) {
	api := &stubAdminAPI{}
	svc := newTestAdminService(t, api, nil)

	require.ErrorIs(t, svc.DeleteMenuItem(context.Background(), ""), ErrAdminInvalidInput)
	require.ErrorIs(t, svc.DeleteOrder(context.Background(), " "), ErrAdminInvalidInput)
	require.ErrorIs(t, svc.DeleteUser(context.Background(), ""), ErrAdminInvalidInput)
	assert.Empty(t, api.deleted)

	require.NoError(t, svc.DeleteUser(context.Background(), "9"))
	assert.Equal(t, []domain.ID{"9"}, api.deleted)
}

func TestDeleteNotFound(t *testing.T) {
	api := &stubAdminAPI{writeErr: errStubNotFound}
	svc := newTestAdminService(t, api, nil)

	require.ErrorIs(t, svc.DeleteOrder(context.Background(), "9"), ErrAdminNotFound)
}

func TestListUsersFilter(t *testing.T) {
	api := &stubAdminAPI{users: []domain.User{{ID: "1", IsCafeStaff: true}}}
	svc := newTestAdminService(t, api, nil)

	users, err := svc.ListUsers(context.Background(), apiclient.UserFilter{StaffOnly: true})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.True(t, api.userFilter.StaffOnly)

	_, err = svc.ListUsers(context.Background(), apiclient.UserFilter{StaffOnly: true, CustomersOnly: true})
	require.ErrorIs(t, err, ErrAdminInvalidInput)
}
