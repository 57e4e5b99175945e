package cache

import (
	"context"
	"log/slog"
	"sync"

	"availability/backend/internal/domain"
	"availability/backend/internal/store"
)

// SnapshotCache holds provider snapshots keyed by provider id.
type SnapshotCache interface {
	Get(ctx context.Context, providerID string) (domain.Snapshot, bool)
	Set(ctx context.Context, snap domain.Snapshot)
	Delete(ctx context.Context, providerID string)
}

// CachedRepository reads through a SnapshotCache and drops the provider's
// entry once a transaction on it commits. A read that overlaps a commit does
// not fill the cache.
type CachedRepository struct {
	next  store.AvailabilityRepository
	cache SnapshotCache
	log   *slog.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

func NewCachedRepository(next store.AvailabilityRepository, cache SnapshotCache, log *slog.Logger) *CachedRepository {
	if log == nil {
		log = slog.Default()
	}
	return &CachedRepository{
		next:  next,
		cache: cache,
		log:   log.With(slog.String("component", "snapshot_cache")),
		gen:   make(map[string]uint64),
	}
}

func (r *CachedRepository) Get(ctx context.Context, providerID string) (domain.Snapshot, error) {
	if snap, ok := r.cache.Get(ctx, providerID); ok {
		return snap, nil
	}
	gen := r.generation(providerID)
	snap, err := r.next.Get(ctx, providerID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[providerID] != gen {
		r.log.Debug("skipped fill after concurrent commit", slog.String("provider_id", providerID))
		return snap, nil
	}
	r.cache.Set(ctx, snap)
	return snap, nil
}

func (r *CachedRepository) generation(providerID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[providerID]
}

func (r *CachedRepository) InProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
	err := r.next.InProviderTransaction(ctx, providerID, fn)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.gen[providerID]++
	r.mu.Unlock()
	r.cache.Delete(ctx, providerID)
	r.log.Debug("invalidated", slog.String("provider_id", providerID))
	return nil
}
