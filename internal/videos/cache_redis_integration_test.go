//go:build integration

package videos

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, "")

	if _, ok, err := cache.Get(ctx, "dQw4w9WgXcQ"); err != nil || ok {
		t.Fatalf("Get() on empty cache = %v, %v", ok, err)
	}

	want := Metadata{DurationSeconds: 212, ViewCount: 1_500_000}
	if err := cache.Set(ctx, "dQw4w9WgXcQ", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, "dQw4w9WgXcQ")
	if err != nil || !ok || got != want {
		t.Fatalf("Get() = %+v, %v, %v; want %+v", got, ok, err, want)
	}

	ttl, err := client.TTL(ctx, DefaultCacheKeyPrefix+"dQw4w9WgXcQ").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected a positive ttl, got %v (%v)", ttl, err)
	}

	provider := &stubProvider{metadata: Metadata{DurationSeconds: 1, ViewCount: 1}}
	caching := NewCachingProvider(provider, time.Minute, cache)
	got, err = caching.Lookup(ctx, "dQw4w9WgXcQ")
	if err != nil || got != want {
		t.Fatalf("shared cache entry should win over the provider, got %+v (%v)", got, err)
	}
	if n := provider.calls.Load(); n != 0 {
		t.Fatalf("provider called %d times", n)
	}
}
