package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/cafe-delivery/storefront/internal/domain"
)

type memoryTokens struct {
	mu      sync.Mutex
	session domain.AuthSession
	cleared int
}

func (m *memoryTokens) Load(context.Context) (domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *memoryTokens) SaveAccessToken(_ context.Context, access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.AccessToken = access
	return nil
}

func (m *memoryTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = domain.AuthSession{}
	m.cleared++
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenStore) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts := []Option{}
	if tokens != nil {
		opts = append(opts, WithTokenStore(tokens))
	}
	client, err := NewClient(srv.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}

func TestListAcceptsPagedAndBareArrays(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/menu/items/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("category__category_type"); got != "drink" {
			t.Errorf("expected drink filter, got %q", got)
		}
		_, _ = io.WriteString(w, `{"count":1,"results":[{"id":3,"name":"Tea","price":"5.00","is_available":true}]}`)
	})
	mux.HandleFunc("/api/menu/categories/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Hot","category_type":"drink"}]`)
	})
	client := newTestClient(t, mux, nil)

	items, err := client.ListMenuItems(context.Background(), MenuFilter{CategoryType: "drink"})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].ID != "3" || items[0].Name != "Tea" {
		t.Fatalf("unexpected items %+v", items)
	}
	categories, err := client.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 1 || categories[0].CategoryType != "drink" {
		t.Fatalf("unexpected categories %+v", categories)
	}
}

func TestAPIErrorKeepsFieldOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"phone_number":["Too short.","Digits only."],"delivery_address":"Required.","items":[{"menu_item":["Invalid pk"]}]}`)
	})
	client := newTestClient(t, handler, nil)

	_, err := client.CreateOrder(context.Background(), domain.OrderSubmission{})
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message() != "Too short." {
		t.Fatalf("unexpected error %d %q", apiErr.Status, apiErr.Message())
	}
	fields := apiErr.FirstMessages()
	if fields["delivery_address"] != "Required." {
		t.Fatalf("unexpected delivery_address message %q", fields["delivery_address"])
	}
	if fields["items"] != `{"menu_item":["Invalid pk"]}` {
		t.Fatalf("unexpected items message %q", fields["items"])
	}
}

func TestAPIErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server error", status: 502, body: `{"detail":"upstream"}`, want: serverErrorMessage},
		{name: "string body", status: 400, body: `"Cart is empty"`, want: "Cart is empty"},
		{name: "detail", status: 401, body: `{"detail":"No active account"}`, want: "No active account"},
		{name: "empty", status: 404, body: ``, want: "Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := &APIError{Status: tc.status}
			apiErr.Text, apiErr.Fields = parseErrorBody([]byte(tc.body))
			if got := apiErr.Message(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	got := truncate("ab☕cd", 3)
	if got != "ab" || !utf8.ValidString(got) {
		t.Fatalf("expected %q, got %q", "ab", got)
	}
	if got := truncate("ab☕cd", 5); got != "ab☕" {
		t.Fatalf("expected whole rune kept, got %q", got)
	}

	body := "x" + strings.Repeat("é", 200)
	apiErr := &APIError{Status: 400}
	apiErr.Text, apiErr.Fields = parseErrorBody([]byte(body))
	if len(apiErr.Text) > 256 || !utf8.ValidString(apiErr.Text) {
		t.Fatalf("expected valid text within 256 bytes, got %d bytes", len(apiErr.Text))
	}
}

func TestDefaultAddressNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("is_default") != "true" {
			t.Errorf("expected is_default filter")
		}
		_, _ = io.WriteString(w, `[]`)
	})
	client := newTestClient(t, handler, nil)
	if _, err := client.DefaultAddress(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOrderSendsWirePayload(t *testing.T) {
	var received map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":42,"status":"pending","total_amount":"30.99"}`)
	})
	client := newTestClient(t, handler, nil)

	order, err := client.CreateOrder(context.Background(), domain.OrderSubmission{
		Items:             []domain.OrderItemInput{{MenuItem: "7", Quantity: 2, Price: json.Number("10")}},
		DeliveryAddress:   "Bole",
		DeliveryLatitude:  "9.032",
		DeliveryLongitude: "38.7469",
		PhoneNumber:       "0911223344",
		PaymentMethod:     domain.PaymentCash,
		DeliveryFee:       "2.99",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "42" {
		t.Fatalf("expected order 42, got %q", order.ID)
	}
	if _, ok := received["delivery_distance"]; !ok || received["delivery_distance"] != nil {
		t.Fatalf("expected explicit null delivery_distance, got %v", received["delivery_distance"])
	}
	items := received["items"].([]any)
	first := items[0].(map[string]any)
	if first["menu_item"] != float64(7) || first["price"] != float64(10) {
		t.Fatalf("unexpected item payload %v", first)
	}
}
