package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
)

func TestLocalCache_GetSetRoundTrip(t *testing.T) {
	c := rediscache.NewLocalCache()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get on empty cache: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get after Set = (%q, %v, %v), want (v, true, nil)", v, ok, err)
	}
}

func TestLocalCache_GetExpiresEntry(t *testing.T) {
	c := rediscache.NewLocalCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected expired entry to be treated as a miss")
	}
}

func TestLocalCache_SetNXWinnerTakesAll(t *testing.T) {
	c := rediscache.NewLocalCache()
	ctx := context.Background()

	won, err := c.SetNX(ctx, "lock", "first", time.Minute)
	if err != nil || !won {
		t.Fatalf("first SetNX: won=%v err=%v, want true, nil", won, err)
	}
	won, err = c.SetNX(ctx, "lock", "second", time.Minute)
	if err != nil || won {
		t.Fatalf("second SetNX: won=%v err=%v, want false, nil", won, err)
	}
}

func TestLocalCache_DelAndFlushAll(t *testing.T) {
	c := rediscache.NewLocalCache()
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", time.Minute)
	_ = c.Set(ctx, "b", "2", time.Minute)

	if err := c.Del(ctx, "a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("expected deleted key to be a miss")
	}
	if _, ok, _ := c.Get(ctx, "b"); !ok {
		t.Fatal("expected untouched key to remain")
	}

	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatal("expected FlushAll to clear every entry")
	}
}

func TestLocalCache_ImplementsFlusher(t *testing.T) {
	var _ rediscache.Flusher = rediscache.NewLocalCache()
}
