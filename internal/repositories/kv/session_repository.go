package kv

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

// SessionRepository keeps tokens and the cached profile under their own keys.
type SessionRepository struct {
	store storage.Storage
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository binds the repository to a storage backend.
func NewSessionRepository(store storage.Storage) *SessionRepository {
	return &SessionRepository{store: store}
}

// Load implements repositories.SessionRepository. Missing keys produce empty fields, and a
// corrupt cached user is ignored.
func (r *SessionRepository) Load(ctx context.Context) (domain.AuthSession, error) {
	var session domain.AuthSession
	var err error
	if session.AccessToken, err = r.optional(ctx, KeyAccessToken); err != nil {
		return domain.AuthSession{}, err
	}
	if session.RefreshToken, err = r.optional(ctx, KeyRefreshToken); err != nil {
		return domain.AuthSession{}, err
	}
	rawUser, err := r.optional(ctx, KeyUser)
	if err != nil {
		return domain.AuthSession{}, err
	}
	if rawUser != "" {
		var user domain.User
		if json.Unmarshal([]byte(rawUser), &user) == nil {
			session.User = &user
		}
	}
	return session, nil
}

// SaveTokens implements repositories.SessionRepository.
func (r *SessionRepository) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := r.store.Set(ctx, KeyAccessToken, access); err != nil {
		return wrap("session.save_tokens", err)
	}
	return wrap("session.save_tokens", r.store.Set(ctx, KeyRefreshToken, refresh))
}

// SaveAccessToken implements repositories.SessionRepository.
func (r *SessionRepository) SaveAccessToken(ctx context.Context, access string) error {
	return wrap("session.save_access", r.store.Set(ctx, KeyAccessToken, access))
}

// SaveUser implements repositories.SessionRepository.
func (r *SessionRepository) SaveUser(ctx context.Context, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return wrap("session.save_user", err)
	}
	return wrap("session.save_user", r.store.Set(ctx, KeyUser, string(data)))
}

// Clear implements repositories.SessionRepository.
func (r *SessionRepository) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := r.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return wrap("session.clear", errors.Join(errs...))
}

func (r *SessionRepository) optional(ctx context.Context, key string) (string, error) {
	value, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", wrap("session.load", err)
	}
	return value, nil
}
