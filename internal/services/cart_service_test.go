package services

import (
	"context"
	"errors"
	"testing"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories/kv"
)

type stubMenu struct {
	items map[domain.ID]domain.MenuItem
	err   error
}

func (s *stubMenu) GetMenuItem(ctx context.Context, id domain.ID) (domain.MenuItem, error) {
	if s.err != nil {
		return domain.MenuItem{}, s.err
	}
	item, ok := s.items[id]
	if !ok {
		return domain.MenuItem{}, errors.New("not found")
	}
	return item, nil
}

func visitorContext(id string) context.Context {
	return requestctx.WithVisitor(context.Background(), id)
}

func newTestCartService(t *testing.T, backend storage.Storage, menu menuItemFinder) CartService {
	t.Helper()
	deps := CartServiceDeps{Repository: kv.NewCartRepository(storage.NewVisitorScoped(backend))}
	if menu != nil {
		deps.Menu = menu
	}
	service, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return service
}

func TestCartServiceAddOrIncrement(t *testing.T) {
	ctx := visitorContext("v1")
	service := newTestCartService(t, storage.NewMemoryStore(), nil)

	burger := CartItemInput{ID: "1", Name: "Burger", Price: dec("10.00")}
	if _, err := service.AddOrIncrement(ctx, burger); err != nil {
		t.Fatalf("add: %v", err)
	}
	lines, err := service.AddOrIncrement(ctx, burger)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", lines)
	}

	lines, err = service.AddOrIncrement(ctx, CartItemInput{ID: "2", Name: "Tea", Price: dec("5")})
	if err != nil {
		t.Fatalf("add tea: %v", err)
	}
	if len(lines) != 2 || lines[1].Quantity != 1 {
		t.Fatalf("expected appended tea line, got %+v", lines)
	}

	count, err := service.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d (%v)", count, err)
	}
}

func TestCartServiceSetQuantityBelowOneRemovesLine(t *testing.T) {
	ctx := visitorContext("v1")
	service := newTestCartService(t, storage.NewMemoryStore(), nil)
	_, _ = service.AddOrIncrement(ctx, CartItemInput{ID: "1", Name: "Burger", Price: dec("10")})
	_, _ = service.AddOrIncrement(ctx, CartItemInput{ID: "2", Name: "Tea", Price: dec("5")})

	lines, err := service.SetQuantity(ctx, "1", 4)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if lines[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", lines[0].Quantity)
	}

	lines, err = service.SetQuantity(ctx, "1", 0)
	if err != nil {
		t.Fatalf("set zero: %v", err)
	}
	if len(lines) != 1 || lines[0].ID != "2" {
		t.Fatalf("expected burger removed, got %+v", lines)
	}

	reloaded, err := service.Load(ctx)
	if err != nil || len(reloaded) != 1 {
		t.Fatalf("expected persisted removal, got %+v (%v)", reloaded, err)
	}
}

func TestCartServiceIsolatesVisitors(t *testing.T) {
	backend := storage.NewMemoryStore()
	service := newTestCartService(t, backend, nil)

	if _, err := service.AddOrIncrement(visitorContext("a"), CartItemInput{ID: "1", Price: dec("1")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	lines, err := service.Load(visitorContext("b"))
	if err != nil || len(lines) != 0 {
		t.Fatalf("expected empty cart for another visitor, got %+v (%v)", lines, err)
	}
}

func TestCartServiceClear(t *testing.T) {
	ctx := visitorContext("v1")
	service := newTestCartService(t, storage.NewMemoryStore(), nil)
	_, _ = service.AddOrIncrement(ctx, CartItemInput{ID: "1", Price: dec("1")})

	if err := service.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	lines, err := service.Load(ctx)
	if err != nil || len(lines) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v (%v)", lines, err)
	}
}

func TestCartServiceResolvesMenuItem(t *testing.T) {
	ctx := visitorContext("v1")
	menu := &stubMenu{items: map[domain.ID]domain.MenuItem{
		"5": {ID: "5", Name: "Macchiato", Price: dec("4.25"), IsAvailable: true},
		"6": {ID: "6", Name: "Sold out", Price: dec("1"), IsAvailable: false},
	}}
	service := newTestCartService(t, storage.NewMemoryStore(), menu)

	lines, err := service.AddOrIncrement(ctx, CartItemInput{ID: "5", Name: "tampered", Price: dec("0.01")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if lines[0].Name != "Macchiato" || !lines[0].Price.Equal(dec("4.25")) {
		t.Fatalf("expected menu values, got %+v", lines[0])
	}

	if _, err := service.AddOrIncrement(ctx, CartItemInput{ID: "6"}); !errors.Is(err, ErrCartItemUnavailable) {
		t.Fatalf("expected ErrCartItemUnavailable, got %v", err)
	}
}

func TestCartServiceMenuLookupFailures(t *testing.T) {
	ctx := visitorContext("v1")
	menu := &stubMenu{items: map[domain.ID]domain.MenuItem{}}
	service := newTestCartService(t, storage.NewMemoryStore(), menu)

	if _, err := service.AddOrIncrement(ctx, CartItemInput{ID: "404"}); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable for unreadable lookup, got %v", err)
	}

	menu.err = errStubNotFound
	if _, err := service.AddOrIncrement(ctx, CartItemInput{ID: "404"}); !errors.Is(err, ErrCartItemUnavailable) {
		t.Fatalf("expected ErrCartItemUnavailable for missing item, got %v", err)
	}
}

func TestCartServiceRequiresVisitor(t *testing.T) {
	service := newTestCartService(t, storage.NewMemoryStore(), nil)
	_, err := service.Load(context.Background())
	if !errors.Is(err, ErrCartUnavailable) || !errors.Is(err, storage.ErrNoVisitor) {
		t.Fatalf("expected unavailable error wrapping ErrNoVisitor, got %v", err)
	}
}

func TestCartServiceRejectsInvalidInput(t *testing.T) {
	ctx := visitorContext("v1")
	service := newTestCartService(t, storage.NewMemoryStore(), nil)
	if _, err := service.AddOrIncrement(ctx, CartItemInput{}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
	if _, err := service.AddOrIncrement(ctx, CartItemInput{ID: "1", Price: dec("-1")}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for negative price, got %v", err)
	}
}
