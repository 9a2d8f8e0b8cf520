package storage

import (
	"context"
	"fmt"

	"github.com/cafe-delivery/storefront/internal/platform/config"
	pfirestore "github.com/cafe-delivery/storefront/internal/platform/firestore"
)

// Open builds the backend selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg config.Config) (Storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory, "":
		return NewMemoryStore(), nil
	case config.StorageDriverFile:
		return NewFileStore(cfg.Storage.FilePath)
	case config.StorageDriverRedis:
		return DialRedis(ctx, cfg.Storage.RedisURL, WithKeyPrefix(cfg.Storage.KeyPrefix), WithTTL(cfg.Storage.TTL))
	case config.StorageDriverFirestore:
		return NewFirestoreStore(pfirestore.NewProvider(cfg.Firestore), cfg.Firestore.Collection)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Storage.Driver)
	}
}
