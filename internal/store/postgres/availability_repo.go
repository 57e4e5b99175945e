package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"availability/backend/internal/domain"
	"availability/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

type availabilityTx struct {
	tx bun.Tx
}

func (r *AvailabilityRepo) Get(ctx context.Context, providerID string) (domain.Snapshot, error) {
	return loadSnapshot(ctx, r.db, providerID)
}

func (r *AvailabilityRepo) InProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProvider(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, availabilityTx{tx: tx})
	})
}

func lockProvider(ctx context.Context, tx bun.Tx, providerID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID).Exec(ctx)
	return err
}

func (r availabilityTx) Load(ctx context.Context, providerID string) (domain.Snapshot, error) {
	return loadSnapshot(ctx, r.tx, providerID)
}

func (r availabilityTx) Create(ctx context.Context, snap domain.Snapshot) error {
	p := providerRow{
		ProviderID: snap.ProviderID,
		TimeZone:   snap.TimeZone,
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt.UTC(),
	}
	if _, err := r.tx.NewInsert().Model(&p).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return err
	}
	return r.insertChildren(ctx, snap)
}

func (r availabilityTx) Save(ctx context.Context, snap domain.Snapshot, expectedVersion int64) error {
	p := providerRow{
		ProviderID: snap.ProviderID,
		TimeZone:   snap.TimeZone,
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt.UTC(),
	}
	res, err := r.tx.NewUpdate().
		Model(&p).
		Column("time_zone", "version", "updated_at").
		Where("provider_id = ?", snap.ProviderID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		exists, err := r.tx.NewSelect().
			Model((*providerRow)(nil)).
			Where("provider_id = ?", snap.ProviderID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStaleVersion
	}

	for _, model := range []any{(*slotRow)(nil), (*scheduleRow)(nil), (*exceptionRow)(nil)} {
		if _, err := r.tx.NewDelete().
			Model(model).
			Where("provider_id = ?", snap.ProviderID).
			Exec(ctx); err != nil {
			return err
		}
	}
	return r.insertChildren(ctx, snap)
}

func (r availabilityTx) insertChildren(ctx context.Context, snap domain.Snapshot) error {
	if rows := slotRows(snap.ProviderID, snap.Slots); len(rows) > 0 {
		if _, err := r.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}
	}
	if rows := scheduleRows(snap.ProviderID, snap.Schedules); len(rows) > 0 {
		if _, err := r.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}
	}
	if rows := exceptionRows(snap.ProviderID, snap.Exceptions); len(rows) > 0 {
		if _, err := r.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func loadSnapshot(ctx context.Context, db bun.IDB, providerID string) (domain.Snapshot, error) {
	var p providerRow
	err := db.NewSelect().
		Model(&p).
		Where("provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, store.ErrNotFound
		}
		return domain.Snapshot{}, err
	}

	var slots []slotRow
	if err := db.NewSelect().
		Model(&slots).
		Where("provider_id = ?", providerID).
		OrderExpr("seq ASC").
		Scan(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	var schedules []scheduleRow
	if err := db.NewSelect().
		Model(&schedules).
		Where("provider_id = ?", providerID).
		OrderExpr("seq ASC").
		Scan(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	var exceptions []exceptionRow
	if err := db.NewSelect().
		Model(&exceptions).
		Where("provider_id = ?", providerID).
		OrderExpr("seq ASC").
		Scan(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	return toSnapshot(p, slots, schedules, exceptions)
}
