package kv

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

// PreferenceRepository stores UI preferences as JSON scalars.
type PreferenceRepository struct {
	store storage.Storage
}

var _ repositories.PreferenceRepository = (*PreferenceRepository)(nil)

// NewPreferenceRepository binds the repository to a storage backend.
func NewPreferenceRepository(store storage.Storage) *PreferenceRepository {
	return &PreferenceRepository{store: store}
}

// DarkMode implements repositories.PreferenceRepository. Unparsable values count as unset.
func (r *PreferenceRepository) DarkMode(ctx context.Context) (bool, bool, error) {
	raw, err := r.store.Get(ctx, KeyDarkMode)
	if errors.Is(err, storage.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, wrap("preferences.dark_mode", err)
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false, nil
	}
	return enabled, true, nil
}

// SetDarkMode implements repositories.PreferenceRepository.
func (r *PreferenceRepository) SetDarkMode(ctx context.Context, enabled bool) error {
	return wrap("preferences.set_dark_mode", r.store.Set(ctx, KeyDarkMode, strconv.FormatBool(enabled)))
}
