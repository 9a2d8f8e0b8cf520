package kv

import (
	"context"
	"encoding/json"

	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

// PaymentMarkerRepository stores the pending payment under "pending_payment".
type PaymentMarkerRepository struct {
	store storage.Storage
}

var _ repositories.PaymentMarkerRepository = (*PaymentMarkerRepository)(nil)

// NewPaymentMarkerRepository binds the repository to a storage backend.
func NewPaymentMarkerRepository(store storage.Storage) *PaymentMarkerRepository {
	return &PaymentMarkerRepository{store: store}
}

// Save implements repositories.PaymentMarkerRepository.
func (r *PaymentMarkerRepository) Save(ctx context.Context, marker domain.PendingPayment) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return wrap("payment_marker.save", err)
	}
	return wrap("payment_marker.save", r.store.Set(ctx, KeyPendingPayment, string(data)))
}

// Load implements repositories.PaymentMarkerRepository.
func (r *PaymentMarkerRepository) Load(ctx context.Context) (domain.PendingPayment, error) {
	raw, err := r.store.Get(ctx, KeyPendingPayment)
	if err != nil {
		return domain.PendingPayment{}, wrap("payment_marker.load", err)
	}
	var marker domain.PendingPayment
	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		return domain.PendingPayment{}, wrap("payment_marker.load", err)
	}
	return marker, nil
}

// Clear implements repositories.PaymentMarkerRepository.
func (r *PaymentMarkerRepository) Clear(ctx context.Context) error {
	return wrap("payment_marker.clear", r.store.Remove(ctx, KeyPendingPayment))
}
