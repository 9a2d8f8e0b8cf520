package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cafe-delivery/storefront/internal/repositories"
)

var errThemeRepositoryRequired = errors.New("theme service: repository is required")

// ErrThemeUnavailable indicates the preference storage cannot be reached.
var ErrThemeUnavailable = errors.New("theme service: unavailable")

// ThemeServiceDeps wires the preference store.
type ThemeServiceDeps struct {
	Repository repositories.PreferenceRepository
}

type themeService struct {
	repo repositories.PreferenceRepository
}

var _ ThemeService = (*themeService)(nil)

// NewThemeService constructs the dark mode preference service.
func NewThemeService(deps ThemeServiceDeps) (ThemeService, error) {
	if deps.Repository == nil {
		return nil, errThemeRepositoryRequired
	}
	return &themeService{repo: deps.Repository}, nil
}

// DarkMode returns the stored preference; visitors without one get light mode.
func (s *themeService) DarkMode(ctx context.Context) (bool, error) {
	enabled, _, err := s.repo.DarkMode(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrThemeUnavailable, err)
	}
	return enabled, nil
}

func (s *themeService) SetDarkMode(ctx context.Context, enabled bool) (bool, error) {
	if err := s.repo.SetDarkMode(ctx, enabled); err != nil {
		return false, fmt.Errorf("%w: %w", ErrThemeUnavailable, err)
	}
	return enabled, nil
}

func (s *themeService) Toggle(ctx context.Context) (bool, error) {
	current, err := s.DarkMode(ctx)
	if err != nil {
		return false, err
	}
	return s.SetDarkMode(ctx, !current)
}
