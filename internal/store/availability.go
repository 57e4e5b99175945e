package store

import (
	"context"

	"availability/backend/internal/domain"
)

// AvailabilityRepository persists provider availability snapshots.
type AvailabilityRepository interface {
	Get(ctx context.Context, providerID string) (domain.Snapshot, error)
	InProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx AvailabilityTx) error) error
}

// AvailabilityTx is scoped to one provider and holds that provider's lock
// until the surrounding transaction ends.
type AvailabilityTx interface {
	Load(ctx context.Context, providerID string) (domain.Snapshot, error)
	Create(ctx context.Context, snap domain.Snapshot) error
	// Save replaces the stored state when the stored version still equals
	// expectedVersion, otherwise it returns ErrStaleVersion.
	Save(ctx context.Context, snap domain.Snapshot, expectedVersion int64) error
}
