// Package rediscache is the short-lived, cluster-shared cache layer used by
// the breaker fast path and the cluster-aware alert cooldowns (queue-depth
// alert and failure notifier). Queue stats are not cached here. When no
// Redis address is configured, Cache falls back to an in-process,
// mutex-guarded map so a single-node deployment still works — cooldowns
// just stop being cluster-aware.
package rediscache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal Get/Set/SetNX surface the domain packages need.
// It never panics on a Redis outage — every method degrades to "cache miss"
// so a down Redis never blocks the sync engine, only its cross-node
// coordination niceties.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX reports whether this call created the key (i.e. the caller won
	// the race) — used by the enqueuer and notifier cooldown gates.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// RedisCache wraps go-redis/v9 for the multi-node deployment case.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// FlushAll wipes every cached breaker/cooldown key — backs "cache
// flush". Scoped to this client's DB, not the whole Redis server.
func (c *RedisCache) FlushAll(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// LocalCache is the process-local, mutex-guarded map fallback for single-node
// deployments or local development where no Redis address is configured.
type LocalCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

type localEntry struct {
	value   string
	expires time.Time
}

func NewLocalCache() *LocalCache {
	return &LocalCache{entries: make(map[string]localEntry)}
}

func (c *LocalCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = localEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && time.Now().Before(e.expires) {
		return false, nil
	}
	c.entries[key] = localEntry{value: value, expires: time.Now().Add(ttl)}
	return true, nil
}

func (c *LocalCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// FlushAll clears every cached entry.
func (c *LocalCache) FlushAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]localEntry)
	return nil
}

// Flusher is implemented by both Cache backends; the CLI type-asserts for it
// since FlushAll isn't part of the narrow Cache interface every domain
// package depends on.
type Flusher interface {
	FlushAll(ctx context.Context) error
}
