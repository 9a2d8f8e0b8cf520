package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

var errCartRepositoryRequired = errors.New("cart service: repository is required")

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart storage cannot be reached.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartItemUnavailable indicates the menu item cannot currently be ordered.
var ErrCartItemUnavailable = errors.New("cart service: item unavailable")

// A menu item that cannot be found is reported as unavailable.
var cartMenuErrorKinds = apiErrorKinds{
	invalid:     ErrCartInvalidInput,
	notFound:    ErrCartItemUnavailable,
	unavailable: ErrCartUnavailable,
}

type menuItemFinder interface {
	GetMenuItem(ctx context.Context, id domain.ID) (domain.MenuItem, error)
}

// CartServiceDeps wires the repository and the optional menu lookup.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Menu       menuItemFinder
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo   repositories.CartRepository
	menu   menuItemFinder
	logger func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	return &cartService{
		repo:   deps.Repository,
		menu:   deps.Menu,
		logger: loggerOrNoop(deps.Logger),
	}, nil
}

func (s *cartService) Load(ctx context.Context) ([]CartLine, error) {
	lines, err := s.repo.Load(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return lines, nil
}

func (s *cartService) Save(ctx context.Context, lines []CartLine) error {
	for _, line := range lines {
		if line.ID.IsZero() || line.Quantity < 1 || line.Price.IsNegative() {
			return ErrCartInvalidInput
		}
	}
	return s.translateRepoError(s.repo.Save(ctx, lines))
}

func (s *cartService) AddOrIncrement(ctx context.Context, item CartItemInput) ([]CartLine, error) {
	if item.ID.IsZero() {
		return nil, ErrCartInvalidInput
	}
	if s.menu != nil {
		resolved, err := s.menu.GetMenuItem(ctx, item.ID)
		if err != nil {
			return nil, translateAPIError(err, cartMenuErrorKinds)
		}
		if !resolved.IsAvailable {
			return nil, ErrCartItemUnavailable
		}
		item = CartItemInput{ID: resolved.ID, Name: resolved.Name, Price: resolved.Price, Image: resolved.Image}
	}
	if item.Price.IsNegative() {
		return nil, ErrCartInvalidInput
	}

	lines, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range lines {
		if lines[i].ID == item.ID {
			lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, domain.CartLine{
			ID:       item.ID,
			Name:     strings.TrimSpace(item.Name),
			Price:    item.Price,
			Quantity: 1,
			Image:    strings.TrimSpace(item.Image),
		})
	}
	if err := s.persist(ctx, lines); err != nil {
		return nil, err
	}
	s.logger(ctx, "cart.item_added", map[string]any{"itemId": item.ID.String(), "lines": len(lines)})
	return lines, nil
}

func (s *cartService) SetQuantity(ctx context.Context, id domain.ID, quantity int) ([]CartLine, error) {
	if id.IsZero() {
		return nil, ErrCartInvalidInput
	}
	if quantity < 1 {
		return s.Remove(ctx, id)
	}
	lines, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].ID == id {
			lines[i].Quantity = quantity
		}
	}
	if err := s.persist(ctx, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *cartService) Remove(ctx context.Context, id domain.ID) ([]CartLine, error) {
	if id.IsZero() {
		return nil, ErrCartInvalidInput
	}
	lines, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	kept := lines[:0]
	for _, line := range lines {
		if line.ID != id {
			kept = append(kept, line)
		}
	}
	if err := s.persist(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *cartService) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "cart.cleared", nil)
	return nil
}

// Count returns the number of units in the cart.
func (s *cartService) Count(ctx context.Context) (int, error) {
	lines, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count, nil
}

func (s *cartService) persist(ctx context.Context, lines []CartLine) error {
	return s.translateRepoError(s.repo.Save(ctx, lines))
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCartUnavailable, err)
}
