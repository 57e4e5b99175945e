package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"availability/backend/internal/domain"
)

func TestRedisIntegration_SetGetDelete(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("AVAILABILITY_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("AVAILABILITY_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Ping error: %v", err)
	}

	c := NewRedis(rdb, time.Minute, "availability_test", nil)
	snap := domain.Snapshot{
		ProviderID: "prov-redis",
		TimeZone:   "UTC",
		Version:    3,
		Schedules: []domain.RecurringSchedule{{
			ProviderID:   "prov-redis",
			DayOfWeek:    domain.Friday,
			StartTime:    domain.TimeOfDay{Hour: 8},
			EndTime:      domain.TimeOfDay{Hour: 12},
			ServiceTypes: []domain.ServiceType{domain.ServiceTypeNursingVisit},
		}},
	}
	t.Cleanup(func() { c.Delete(context.Background(), snap.ProviderID) })

	c.Set(ctx, snap)
	got, ok := c.Get(ctx, snap.ProviderID)
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Version != 3 || len(got.Schedules) != 1 || got.Schedules[0].DayOfWeek != domain.Friday {
		t.Fatalf("got = %+v", got)
	}

	c.Delete(ctx, snap.ProviderID)
	if _, ok := c.Get(ctx, snap.ProviderID); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedis(rdb, time.Minute, "", nil)
	ctx := context.Background()
	c.Set(ctx, domain.Snapshot{ProviderID: "p"})
	if _, ok := c.Get(ctx, "p"); ok {
		t.Fatalf("expected miss when redis is unreachable")
	}
	c.Delete(ctx, "p")
}
