package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestNewRedisCache(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache("not a url", time.Minute); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestSetAndGet(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "all")
	if err != nil || ok {
		t.Fatalf("Get() on empty cache = ok %v, err %v", ok, err)
	}

	if err := c.Set(ctx, gen, "all", []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, _, ok, err := c.Get(ctx, "all")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if string(data) != `[{"id":1}]` {
		t.Errorf("Get() = %s", data)
	}

	if _, _, ok, _ := c.Get(ctx, "category:7"); ok {
		t.Error("scopes must not share entries")
	}
}

func TestInvalidate(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, 0, "all", []byte("old")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	_, gen, ok, _ := c.Get(ctx, "all")
	if ok {
		t.Fatal("entry survived invalidation")
	}
	if gen != 1 {
		t.Errorf("Get() generation = %d, want 1", gen)
	}
	if got, _ := s.Get(generationKey); got != "1" {
		t.Errorf("generation = %q, want 1", got)
	}

	if err := c.Set(ctx, gen, "all", []byte("new")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, _, ok, _ := c.Get(ctx, "all")
	if !ok || string(data) != "new" {
		t.Errorf("Get() after invalidation = %q, %v", data, ok)
	}
}

func TestEntriesExpire(t *testing.T) {
	c, s := setupTestCache(t, time.Second)
	ctx := context.Background()

	if err := c.Set(ctx, 0, "all", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, _, ok, _ := c.Get(ctx, "all"); ok {
		t.Error("entry should have expired")
	}
}

func TestDefaultTTL(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := NewRedisCacheWithClient(client, 0)
	defer c.Close()

	if err := c.Set(context.Background(), 0, "all", []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := s.TTL("hierarchy:public:0:all"); ttl != defaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, defaultTTL)
	}
}

func TestSetUnderStaleGenerationIsNeverServed(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "all")
	if err != nil || ok {
		t.Fatalf("Get() on empty cache = ok %v, err %v", ok, err)
	}
	// A writer invalidates while the reader is still building its payload.
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := c.Set(ctx, gen, "all", []byte("stale")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if data, _, ok, _ := c.Get(ctx, "all"); ok {
		t.Errorf("Get() served %q built before invalidation", data)
	}
}
