package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories/kv"
)

type stubMenuAPI struct {
	items      []domain.MenuItem
	categories []domain.Category
	err        error
	filter     apiclient.MenuFilter
}

func (s *stubMenuAPI) ListMenuItems(_ context.Context, filter apiclient.MenuFilter) ([]domain.MenuItem, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.MenuItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *stubMenuAPI) GetMenuItem(_ context.Context, id domain.ID) (domain.MenuItem, error) {
	if s.err != nil {
		return domain.MenuItem{}, s.err
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.MenuItem{}, errStubNotFound
}

func (s *stubMenuAPI) ListCategories(context.Context) ([]domain.Category, error) {
	return s.categories, s.err
}

func TestMenuListRendersMarkdown(t *testing.T) {
	api := &stubMenuAPI{items: []domain.MenuItem{
		{ID: "1", Name: "Burger", Description: "**Juicy** beef <script>alert(1)</script>"},
		{ID: "2", Name: "Tea"},
	}}
	svc, err := NewMenuService(MenuServiceDeps{API: api})
	if err != nil {
		t.Fatalf("new menu service: %v", err)
	}

	items, err := svc.ListItems(context.Background(), apiclient.MenuFilter{CategoryType: " Food "})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if api.filter.CategoryType != domain.CategoryFood {
		t.Fatalf("expected normalised filter, got %q", api.filter.CategoryType)
	}
	html := items[0].DescriptionHTML
	if !strings.Contains(html, "<strong>Juicy</strong>") || strings.Contains(html, "<script>") {
		t.Fatalf("unexpected description html %q", html)
	}
	if items[1].DescriptionHTML != "" {
		t.Fatalf("expected empty html for item without description")
	}
}

func TestMenuRejectsUnknownCategoryType(t *testing.T) {
	api := &stubMenuAPI{}
	svc, _ := NewMenuService(MenuServiceDeps{API: api})

	_, err := svc.ListItems(context.Background(), apiclient.MenuFilter{CategoryType: "dessert"})
	if !errors.Is(err, ErrMenuInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMenuGetItemNotFound(t *testing.T) {
	svc, _ := NewMenuService(MenuServiceDeps{API: &stubMenuAPI{}})

	if _, err := svc.GetItem(context.Background(), ""); !errors.Is(err, ErrMenuInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
	if _, err := svc.GetItem(context.Background(), "9"); !errors.Is(err, ErrMenuNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMenuUnavailable(t *testing.T) {
	svc, _ := NewMenuService(MenuServiceDeps{API: &stubMenuAPI{err: errBoom}})

	_, err := svc.ListCategories(context.Background())
	if !errors.Is(err, ErrMenuUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	userErr, ok := AsUserError(err)
	if !ok || userErr.Message() != "Service unavailable. Please try again later." {
		t.Fatalf("unexpected user error %v", err)
	}
}

type stubAddressAPI struct {
	addresses []domain.Address
	created   []domain.Address
	defaultID domain.ID
	err       error
}

func (s *stubAddressAPI) ListAddresses(context.Context) ([]domain.Address, error) {
	return s.addresses, s.err
}

func (s *stubAddressAPI) DefaultAddress(context.Context) (domain.Address, error) {
	if s.err != nil {
		return domain.Address{}, s.err
	}
	for _, address := range s.addresses {
		if address.IsDefault {
			return address, nil
		}
	}
	return domain.Address{}, errStubNotFound
}

func (s *stubAddressAPI) CreateAddress(_ context.Context, address domain.Address) (domain.Address, error) {
	if s.err != nil {
		return domain.Address{}, s.err
	}
	s.created = append(s.created, address)
	address.ID = "31"
	return address, nil
}

func (s *stubAddressAPI) UpdateAddress(_ context.Context, _ domain.ID, address domain.Address) (domain.Address, error) {
	return address, s.err
}

func (s *stubAddressAPI) DeleteAddress(context.Context, domain.ID) error {
	return s.err
}

func (s *stubAddressAPI) SetDefaultAddress(_ context.Context, id domain.ID) error {
	s.defaultID = id
	return s.err
}

func TestAddressCreateValidates(t *testing.T) {
	api := &stubAddressAPI{}
	svc, err := NewAddressService(AddressServiceDeps{API: api})
	if err != nil {
		t.Fatalf("new address service: %v", err)
	}

	_, err = svc.Create(context.Background(), domain.Address{
		FullAddress: "   ",
		Latitude:    decimal.NewNullDecimal(decimal.NewFromInt(91)),
	})
	verr, ok := AsValidationError(err)
	if !ok || !errors.Is(err, ErrAddressInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := verr.Fields()
	if fields["full_address"] != msgAddressRequired || fields["latitude"] == "" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if len(api.created) != 0 {
		t.Fatalf("invalid address must not reach the api")
	}

	created, err := svc.Create(context.Background(), domain.Address{Label: " Home ", FullAddress: " Bole Road 12 "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "31" || api.created[0].FullAddress != "Bole Road 12" || api.created[0].Label != "Home" {
		t.Fatalf("unexpected created address %+v / %+v", created, api.created)
	}
}

func TestAddressDefaultNotFound(t *testing.T) {
	svc, _ := NewAddressService(AddressServiceDeps{API: &stubAddressAPI{}})

	_, err := svc.Default(context.Background())
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddressSetDefault(t *testing.T) {
	api := &stubAddressAPI{}
	svc, _ := NewAddressService(AddressServiceDeps{API: api})

	if err := svc.SetDefault(context.Background(), ""); !errors.Is(err, ErrAddressInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := svc.SetDefault(context.Background(), "4"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if api.defaultID != "4" {
		t.Fatalf("expected default 4, got %q", api.defaultID)
	}
}

func TestAddressSessionExpiredPassesThrough(t *testing.T) {
	svc, _ := NewAddressService(AddressServiceDeps{API: &stubAddressAPI{err: ErrSessionExpired}})

	if _, err := svc.List(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestThemeToggle(t *testing.T) {
	repo := kv.NewPreferenceRepository(storage.NewVisitorScoped(storage.NewMemoryStore()))
	svc, err := NewThemeService(ThemeServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new theme service: %v", err)
	}
	ctx := requestctx.WithVisitor(context.Background(), "visitor-1")
	other := requestctx.WithVisitor(context.Background(), "visitor-2")

	enabled, err := svc.DarkMode(ctx)
	if err != nil || enabled {
		t.Fatalf("expected light mode by default, got %v %v", enabled, err)
	}
	if enabled, err = svc.Toggle(ctx); err != nil || !enabled {
		t.Fatalf("expected dark mode after toggle, got %v %v", enabled, err)
	}
	if enabled, _ = svc.DarkMode(other); enabled {
		t.Fatalf("preference leaked across visitors")
	}
	if enabled, err = svc.SetDarkMode(ctx, false); err != nil || enabled {
		t.Fatalf("set dark mode: %v %v", enabled, err)
	}
}

func TestThemeWithoutVisitorIsUnavailable(t *testing.T) {
	repo := kv.NewPreferenceRepository(storage.NewVisitorScoped(storage.NewMemoryStore()))
	svc, _ := NewThemeService(ThemeServiceDeps{Repository: repo})

	if _, err := svc.Toggle(context.Background()); !errors.Is(err, ErrThemeUnavailable) {
		t.Fatalf("expected unavailable without visitor, got %v", err)
	}
}
