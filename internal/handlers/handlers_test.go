package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/platform/idempotency"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories/kv"
	"github.com/cafe-delivery/storefront/internal/services"
)

func withVisitor(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithVisitor(r.Context(), id)))
		})
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rr.Body.String(), err)
	}
	return body
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func newCartRouter(t *testing.T, visitor string, backend storage.Storage) chi.Router {
	t.Helper()
	carts, err := services.NewCartService(services.CartServiceDeps{
		Repository: kv.NewCartRepository(storage.NewVisitorScoped(backend)),
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	pricing, err := services.NewPricingEngine(services.DefaultPricingRules())
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	handlers := NewCartHandlers(carts, pricing, services.NewMoneyFormatter("ETB", "en"))
	return NewRouter(WithMiddlewares(withVisitor(visitor)), WithCartRoutes(handlers.Routes))
}

func TestCartHandlersFlow(t *testing.T) {
	backend := storage.NewMemoryStore()
	router := newCartRouter(t, "visitor-1", backend)

	rr := serve(router, http.MethodPost, "/api/cart/items", `{"id": 1, "name": "Burger", "price": "10.00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	serve(router, http.MethodPost, "/api/cart/items", `{"id": 1, "name": "Burger", "price": "10.00"}`)
	serve(router, http.MethodPost, "/api/cart/items", `{"id": 2, "name": "Tea", "price": "5.00"}`)

	rr = serve(router, http.MethodGet, "/api/cart", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "no-store") {
		t.Fatalf("expected no-store cache control")
	}
	var cart cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.Count != 3 || len(cart.Items) != 2 {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if cart.Quote == nil || !cart.Quote.Subtotal.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("unexpected quote %+v", cart.Quote)
	}
	if cart.Currency != "ETB" {
		t.Fatalf("unexpected currency %q", cart.Currency)
	}

	rr = serve(router, http.MethodPut, "/api/cart/items/1", `{"quantity": 0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set quantity: expected 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ID != "2" {
		t.Fatalf("expected burger removed at zero quantity, got %+v", cart.Items)
	}

	other := newCartRouter(t, "visitor-2", backend)
	rr = serve(other, http.MethodGet, "/api/cart", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Items) != 0 || cart.Quote != nil {
		t.Fatalf("cart leaked across visitors: %+v", cart)
	}

	rr = serve(router, http.MethodDelete, "/api/cart", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", cart.Items)
	}
}

func TestCartHandlersRejectsBadBodies(t *testing.T) {
	router := newCartRouter(t, "visitor-1", storage.NewMemoryStore())

	rr := serve(router, http.MethodPost, "/api/cart/items", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rr.Code)
	}
	rr = serve(router, http.MethodPost, "/api/cart/items", `{"name": "no id"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "invalid_request" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	rr = serve(router, http.MethodPut, "/api/cart/items/1", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d", rr.Code)
	}
}

type stubOrderService struct {
	actErr error
}

func (s *stubOrderService) List(context.Context) (services.OrderGroups, error) {
	return services.OrderGroups{}, services.ErrSessionExpired
}

func (s *stubOrderService) Get(_ context.Context, id domain.ID) (services.OrderView, error) {
	return services.OrderView{Order: domain.Order{ID: id}}, nil
}

func (s *stubOrderService) Act(_ context.Context, id domain.ID, action string) (services.OrderActionResult, error) {
	if s.actErr != nil {
		return services.OrderActionResult{}, s.actErr
	}
	return services.OrderActionResult{Action: action}, nil
}

func customerAuthenticator(roles ...string) *auth.Authenticator {
	return auth.NewAuthenticator(auth.IdentityResolverFunc(func(context.Context) (*auth.Identity, error) {
		return &auth.Identity{UserID: "7", Roles: roles}, nil
	}))
}

func TestOrderHandlersSessionExpiredRedirectsToLogin(t *testing.T) {
	handlers := NewOrderHandlers(customerAuthenticator(auth.RoleCustomer), &stubOrderService{})
	router := NewRouter(WithOrderRoutes(handlers.Routes))

	rr := serve(router, http.MethodGet, "/api/orders", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "session_expired" || body["redirect"] != auth.LoginPath {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestOrderHandlersActionNotAllowed(t *testing.T) {
	handlers := NewOrderHandlers(customerAuthenticator(auth.RoleCustomer), &stubOrderService{actErr: services.ErrOrderActionNotAllowed})
	router := NewRouter(WithOrderRoutes(handlers.Routes))

	rr := serve(router, http.MethodPost, "/api/orders/12/actions/cancel", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "order_action_not_allowed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestOrderHandlersRequireSignIn(t *testing.T) {
	anonymous := auth.NewAuthenticator(auth.IdentityResolverFunc(func(context.Context) (*auth.Identity, error) {
		return nil, auth.ErrNoSession
	}))
	handlers := NewOrderHandlers(anonymous, &stubOrderService{})
	router := NewRouter(WithOrderRoutes(handlers.Routes))

	rr := serve(router, http.MethodGet, "/api/orders/3", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

type unusedAuthAPI struct{}

func (unusedAuthAPI) Login(context.Context, apiclient.Credentials) (apiclient.Tokens, error) {
	return apiclient.Tokens{}, nil
}
func (unusedAuthAPI) Register(context.Context, apiclient.Registration) error { return nil }
func (unusedAuthAPI) RefreshToken(context.Context, string) (string, error) {
	return "", nil
}
func (unusedAuthAPI) Me(context.Context) (domain.User, error) { return domain.User{}, nil }
func (unusedAuthAPI) UpdateProfile(context.Context, apiclient.ProfileUpdate) (domain.User, error) {
	return domain.User{}, nil
}
func (unusedAuthAPI) ChangePassword(context.Context, apiclient.PasswordChange) error { return nil }

func newSessionRouter(t *testing.T) chi.Router {
	t.Helper()
	sessions, err := services.NewSessionService(services.SessionServiceDeps{
		API:        unusedAuthAPI{},
		Repository: kv.NewSessionRepository(storage.NewVisitorScoped(storage.NewMemoryStore())),
	})
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}
	return NewRouter(WithMiddlewares(withVisitor("visitor-1")), WithAuthRoutes(NewSessionHandlers(sessions).Routes))
}

func TestSessionHandlersLoginValidation(t *testing.T) {
	router := newSessionRouter(t)

	rr := serve(router, http.MethodPost, "/api/auth/login", `{"username": " ", "password": ""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["message"] != "Username is required" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	fields, ok := body["fields"].(map[string]any)
	if !ok || fields["password"] != "Password is required" {
		t.Fatalf("expected field errors, got %v", body["fields"])
	}
}

func TestSessionHandlersMeAnonymous(t *testing.T) {
	router := newSessionRouter(t)

	rr := serve(router, http.MethodGet, "/api/auth/me", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["authenticated"] != false {
		t.Fatalf("expected anonymous session, got %v", body)
	}

	rr = serve(router, http.MethodPut, "/api/auth/me", `{"email": "a@b.co"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous profile update, got %d", rr.Code)
	}
}

type stubAdminService struct {
	services.AdminService
	analyticsRange string
}

func (s *stubAdminService) Analytics(_ context.Context, timeRange string) (services.Analytics, error) {
	s.analyticsRange = timeRange
	return services.Analytics{TimeRange: timeRange}, nil
}

func TestAdminHandlersRequireStaff(t *testing.T) {
	svc := &stubAdminService{}

	customer := NewRouter(WithAdminRoutes(NewAdminHandlers(customerAuthenticator(auth.RoleCustomer), svc).Routes))
	rr := serve(customer, http.MethodGet, "/api/admin/analytics?time_range=month", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rr.Code)
	}

	staff := NewRouter(WithAdminRoutes(NewAdminHandlers(customerAuthenticator(auth.RoleStaff), svc).Routes))
	rr = serve(staff, http.MethodGet, "/api/admin/analytics?time_range=month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff, got %d", rr.Code)
	}
	if svc.analyticsRange != "month" {
		t.Fatalf("expected range forwarded, got %q", svc.analyticsRange)
	}

	rr = serve(staff, http.MethodGet, "/api/admin/users?role=robots", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role filter, got %d", rr.Code)
	}
}

type countingCheckout struct {
	services.CheckoutService
	mu      sync.Mutex
	submits int
}

func (c *countingCheckout) Submit(context.Context) (services.CheckoutResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	return services.CheckoutResult{Order: domain.Order{ID: "101"}, NextView: services.ViewOrderHistory}, nil
}

func TestCheckoutSubmitIsIdempotent(t *testing.T) {
	checkout := &countingCheckout{}
	guard := idempotency.Middleware(idempotency.NewMemoryStore(), idempotency.WithOptionalKey())
	handlers := NewCheckoutHandlers(customerAuthenticator(auth.RoleCustomer), checkout, guard)
	router := NewRouter(WithMiddlewares(withVisitor("visitor-1")), WithCheckoutRoutes(handlers.Routes))

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/submit", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := submit()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := submit()
	if second.Code != http.StatusCreated || second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replayed response, got %d %v", second.Code, second.Header())
	}
	if checkout.submits != 1 {
		t.Fatalf("expected a single submission, got %d", checkout.submits)
	}
}

func TestPreferenceHandlersRequireDarkMode(t *testing.T) {
	theme, err := services.NewThemeService(services.ThemeServiceDeps{
		Repository: kv.NewPreferenceRepository(storage.NewVisitorScoped(storage.NewMemoryStore())),
	})
	if err != nil {
		t.Fatalf("new theme service: %v", err)
	}
	router := NewRouter(WithMiddlewares(withVisitor("visitor-1")), WithPreferenceRoutes(NewPreferenceHandlers(theme).Routes))

	if rr := serve(router, http.MethodPut, "/api/preferences/theme", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr := serve(router, http.MethodPost, "/api/preferences/theme/toggle", "")
	if body := decodeBody(t, rr); body["dark_mode"] != true {
		t.Fatalf("expected dark mode after toggle, got %v", body)
	}
	rr = serve(router, http.MethodGet, "/api/preferences/theme", "")
	if body := decodeBody(t, rr); body["dark_mode"] != true {
		t.Fatalf("expected persisted dark mode, got %v", body)
	}
}
