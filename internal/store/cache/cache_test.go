package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"availability/backend/internal/domain"
	"availability/backend/internal/store"
)

type fakeRepo struct {
	getFn func(ctx context.Context, providerID string) (domain.Snapshot, error)
	txFn  func(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error
}

func (f *fakeRepo) Get(ctx context.Context, providerID string) (domain.Snapshot, error) {
	if f.getFn == nil {
		panic("getFn not set")
	}
	return f.getFn(ctx, providerID)
}

func (f *fakeRepo) InProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
	if f.txFn == nil {
		panic("txFn not set")
	}
	return f.txFn(ctx, providerID, fn)
}

func newTestLRU(t *testing.T, size int, ttl time.Duration) *LRU {
	t.Helper()
	c, err := NewLRU(size, ttl)
	if err != nil {
		t.Fatalf("NewLRU error: %v", err)
	}
	return c
}

func TestCachedRepository_ReadThroughAndInvalidate(t *testing.T) {
	calls := 0
	repo := &fakeRepo{
		getFn: func(ctx context.Context, providerID string) (domain.Snapshot, error) {
			calls++
			return domain.Snapshot{ProviderID: providerID, Version: int64(calls)}, nil
		},
		txFn: func(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
			return fn(ctx, nil)
		},
	}
	r := NewCachedRepository(repo, newTestLRU(t, 8, 0), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := r.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if snap.Version != 1 {
			t.Fatalf("Version = %d, want cached 1", snap.Version)
		}
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	if err := r.InProviderTransaction(ctx, "p1", func(ctx context.Context, tx store.AvailabilityTx) error { return nil }); err != nil {
		t.Fatalf("InProviderTransaction error: %v", err)
	}
	snap, err := r.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if snap.Version != 2 || calls != 2 {
		t.Fatalf("Version = %d calls = %d, want reload after commit", snap.Version, calls)
	}
}

func TestCachedRepository_ReadOverlappingCommitDoesNotFill(t *testing.T) {
	reading := make(chan struct{})
	release := make(chan struct{})
	version := int64(1)
	calls := 0
	repo := &fakeRepo{
		getFn: func(ctx context.Context, providerID string) (domain.Snapshot, error) {
			calls++
			snap := domain.Snapshot{ProviderID: providerID, Version: version}
			if calls == 1 {
				close(reading)
				<-release
			}
			return snap, nil
		},
		txFn: func(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
			version = 2
			return fn(ctx, nil)
		},
	}
	c := newTestLRU(t, 8, 0)
	r := NewCachedRepository(repo, c, nil)
	ctx := context.Background()

	done := make(chan domain.Snapshot)
	go func() {
		snap, err := r.Get(ctx, "p1")
		if err != nil {
			t.Errorf("Get error: %v", err)
		}
		done <- snap
	}()

	<-reading
	if err := r.InProviderTransaction(ctx, "p1", func(ctx context.Context, tx store.AvailabilityTx) error { return nil }); err != nil {
		t.Fatalf("InProviderTransaction error: %v", err)
	}
	close(release)
	if snap := <-done; snap.Version != 1 {
		t.Fatalf("overlapping read Version = %d, want 1", snap.Version)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want no fill from overlapping read", c.Len())
	}

	snap, err := r.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if snap.Version != 2 {
		t.Fatalf("Version = %d, want 2 after commit", snap.Version)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestCachedRepository_FailedTransactionKeepsEntry(t *testing.T) {
	boom := errors.New("boom")
	repo := &fakeRepo{
		getFn: func(ctx context.Context, providerID string) (domain.Snapshot, error) {
			return domain.Snapshot{ProviderID: providerID}, nil
		},
		txFn: func(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
			return fn(ctx, nil)
		},
	}
	c := newTestLRU(t, 8, 0)
	r := NewCachedRepository(repo, c, nil)
	ctx := context.Background()

	if _, err := r.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	err := r.InProviderTransaction(ctx, "p1", func(ctx context.Context, tx store.AvailabilityTx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestCachedRepository_DoesNotCacheErrors(t *testing.T) {
	repo := &fakeRepo{
		getFn: func(ctx context.Context, providerID string) (domain.Snapshot, error) {
			return domain.Snapshot{}, store.ErrNotFound
		},
	}
	c := newTestLRU(t, 8, 0)
	r := NewCachedRepository(repo, c, nil)
	if _, err := r.Get(context.Background(), "p1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestLRU_ExpiresAndEvicts(t *testing.T) {
	c := newTestLRU(t, 2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, domain.Snapshot{ProviderID: "a"})
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("expected hit")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected expired entry to miss")
	}

	c.Set(ctx, domain.Snapshot{ProviderID: "a"})
	c.Set(ctx, domain.Snapshot{ProviderID: "b"})
	c.Set(ctx, domain.Snapshot{ProviderID: "c"})
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected least recently used entry to be evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}
