package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/services"
)

// MenuHandlers exposes the public menu.
type MenuHandlers struct {
	menu services.MenuService
}

// NewMenuHandlers constructs the menu handlers.
func NewMenuHandlers(menu services.MenuService) *MenuHandlers {
	return &MenuHandlers{menu: menu}
}

// Routes wires the /menu endpoints.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/items", h.listItems)
	r.Get("/items/{itemID}", h.getItem)
	r.Get("/categories", h.listCategories)
}

func (h *MenuHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeUnavailable(ctx, w, "menu")
		return
	}
	query := r.URL.Query()
	filter := apiclient.MenuFilter{
		CategoryType: chooseQuery(query.Get("category_type"), query.Get("category__category_type")),
		Search:       query.Get("search"),
	}
	items, err := h.menu.ListItems(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *MenuHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeUnavailable(ctx, w, "menu")
		return
	}
	item, err := h.menu.GetItem(ctx, domain.ID(chi.URLParam(r, "itemID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"item": item})
}

func (h *MenuHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeUnavailable(ctx, w, "menu")
		return
	}
	categories, err := h.menu.ListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": nonNil(categories)})
}

func chooseQuery(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
