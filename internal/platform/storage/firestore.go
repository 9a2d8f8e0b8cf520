package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/cafe-delivery/storefront/internal/platform/firestore"
)

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// FirestoreStore keeps one document per key in a single collection.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	now        func() time.Time
}

// NewFirestoreStore wraps the provider. The collection defaults to the provider's configured one.
func NewFirestoreStore(provider *pfirestore.Provider, collection string) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("storage: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		collection = provider.Collection()
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("storage: firestore collection is required")
	}
	return &FirestoreStore{provider: provider, collection: collection, now: time.Now}, nil
}

// Get implements Storage.
func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	doc, err := s.doc(ctx, key)
	if err != nil {
		return "", err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", pfirestore.WrapError("storage.firestore.get", err)
	}
	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return "", fmt.Errorf("storage: decode firestore entry: %w", err)
	}
	return entry.Value, nil
}

// Set implements Storage.
func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	doc, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := doc.Set(ctx, firestoreEntry{Value: value, UpdatedAt: s.now().UTC()}); err != nil {
		return pfirestore.WrapError("storage.firestore.set", err)
	}
	return nil
}

// Remove implements Storage.
func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	doc, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx); err != nil && !pfirestore.IsNotFound(err) {
		return pfirestore.WrapError("storage.firestore.delete", err)
	}
	return nil
}

// Ping implements Pinger by dialing the client.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.provider.Client(ctx)
	return err
}

// Close implements Closer.
func (s *FirestoreStore) Close() error {
	return s.provider.Close()
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	// Document ids cannot contain slashes.
	return client.Collection(s.collection).Doc(strings.ReplaceAll(key, "/", "_")), nil
}
