package kv

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

// CartRepository stores the cart as a JSON array under "cart".
type CartRepository struct {
	store storage.Storage
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository binds the repository to a storage backend.
func NewCartRepository(store storage.Storage) *CartRepository {
	return &CartRepository{store: store}
}

// persistedLine mirrors what may be found in storage. Values can be round-tripped as text,
// so price and quantity are decoded loosely.
type persistedLine struct {
	ID       domain.ID       `json:"id"`
	Name     string          `json:"name"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
	Image    string          `json:"image"`
}

// Load implements repositories.CartRepository.
func (r *CartRepository) Load(ctx context.Context) ([]domain.CartLine, error) {
	raw, err := r.store.Get(ctx, KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.CartLine{}, nil
	}
	if err != nil {
		return nil, wrap("cart.load", err)
	}
	return DecodeCart(raw), nil
}

// Save implements repositories.CartRepository.
func (r *CartRepository) Save(ctx context.Context, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return wrap("cart.save", err)
	}
	return wrap("cart.save", r.store.Set(ctx, KeyCart, string(data)))
}

// Clear implements repositories.CartRepository.
func (r *CartRepository) Clear(ctx context.Context) error {
	return wrap("cart.clear", r.store.Remove(ctx, KeyCart))
}

// DecodeCart parses persisted cart JSON, coercing prices and quantities. Unparsable input yields
// an empty cart; lines without an id are dropped.
func DecodeCart(raw string) []domain.CartLine {
	var persisted []persistedLine
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		return []domain.CartLine{}
	}
	lines := make([]domain.CartLine, 0, len(persisted))
	for _, p := range persisted {
		if p.ID.IsZero() {
			continue
		}
		lines = append(lines, domain.CartLine{
			ID:       p.ID,
			Name:     p.Name,
			Price:    coercePrice(p.Price),
			Quantity: coerceQuantity(p.Quantity),
			Image:    p.Image,
		})
	}
	return lines
}

func rawText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	return text
}

func coercePrice(raw json.RawMessage) decimal.Decimal {
	price, err := decimal.NewFromString(rawText(raw))
	if err != nil {
		return decimal.Zero
	}
	return price
}

func coerceQuantity(raw json.RawMessage) int {
	q, err := strconv.ParseFloat(rawText(raw), 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) || q < 1 {
		return 1
	}
	return int(math.Floor(q))
}
