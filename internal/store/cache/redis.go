package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"availability/backend/internal/domain"
)

// Redis stores JSON-encoded snapshots. Redis errors degrade to cache misses.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, prefix string, log *slog.Logger) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "availability"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix, log: log.With(slog.String("component", "redis_cache"))}
}

func (c *Redis) key(providerID string) string {
	return c.prefix + ":snapshot:" + providerID
}

func (c *Redis) Get(ctx context.Context, providerID string) (domain.Snapshot, bool) {
	raw, err := c.rdb.Get(ctx, c.key(providerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("get failed", slog.String("provider_id", providerID), slog.Any("err", err))
		}
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.Warn("decode failed", slog.String("provider_id", providerID), slog.Any("err", err))
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (c *Redis) Set(ctx context.Context, snap domain.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		c.log.Warn("encode failed", slog.String("provider_id", snap.ProviderID), slog.Any("err", err))
		return
	}
	if err := c.rdb.Set(ctx, c.key(snap.ProviderID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("set failed", slog.String("provider_id", snap.ProviderID), slog.Any("err", err))
	}
}

func (c *Redis) Delete(ctx context.Context, providerID string) {
	if err := c.rdb.Del(ctx, c.key(providerID)).Err(); err != nil {
		c.log.Warn("delete failed", slog.String("provider_id", providerID), slog.Any("err", err))
	}
}
