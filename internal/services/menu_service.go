package services

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
)

var errMenuAPIRequired = errors.New("menu service: api client is required")

var (
	// ErrMenuInvalidInput indicates an unsupported filter or id.
	ErrMenuInvalidInput = errors.New("menu service: invalid input")
	// ErrMenuNotFound indicates the item does not exist.
	ErrMenuNotFound = errors.New("menu service: not found")
	// ErrMenuUnavailable indicates the menu could not be loaded.
	ErrMenuUnavailable = errors.New("menu service: unavailable")
)

var menuErrorKinds = apiErrorKinds{
	invalid:     ErrMenuInvalidInput,
	notFound:    ErrMenuNotFound,
	unavailable: ErrMenuUnavailable,
}

// MenuServiceDeps wires the menu reader.
type MenuServiceDeps struct {
	API    menuAPI
	Logger func(context.Context, string, map[string]any)
}

type menuService struct {
	api      menuAPI
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	logger   func(context.Context, string, map[string]any)
}

var _ MenuService = (*menuService)(nil)

// NewMenuService constructs the menu service.
func NewMenuService(deps MenuServiceDeps) (MenuService, error) {
	if deps.API == nil {
		return nil, errMenuAPIRequired
	}
	return &menuService{
		api:      deps.API,
		markdown: goldmark.New(),
		policy:   bluemonday.UGCPolicy(),
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

func (s *menuService) ListItems(ctx context.Context, filter apiclient.MenuFilter) ([]MenuItem, error) {
	filter.CategoryType = strings.ToLower(strings.TrimSpace(filter.CategoryType))
	switch filter.CategoryType {
	case "", domain.CategoryFood, domain.CategoryDrink:
	default:
		return nil, ErrMenuInvalidInput
	}
	items, err := s.api.ListMenuItems(ctx, filter)
	if err != nil {
		return nil, translateAPIError(err, menuErrorKinds)
	}
	for i := range items {
		s.render(ctx, &items[i])
	}
	return items, nil
}

func (s *menuService) GetItem(ctx context.Context, id domain.ID) (MenuItem, error) {
	if id.IsZero() {
		return MenuItem{}, ErrMenuInvalidInput
	}
	item, err := s.api.GetMenuItem(ctx, id)
	if err != nil {
		return MenuItem{}, translateAPIError(err, menuErrorKinds)
	}
	s.render(ctx, &item)
	return item, nil
}

func (s *menuService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		return nil, translateAPIError(err, menuErrorKinds)
	}
	return categories, nil
}

// render fills DescriptionHTML from the Markdown description.
func (s *menuService) render(ctx context.Context, item *domain.MenuItem) {
	item.DescriptionHTML = ""
	source := strings.TrimSpace(item.Description)
	if source == "" {
		return
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		s.logger(ctx, "menu.render_failed", map[string]any{"itemId": item.ID.String(), "error": err.Error()})
		return
	}
	item.DescriptionHTML = strings.TrimSpace(string(s.policy.SanitizeBytes(buf.Bytes())))
}
