package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"risk-console/pkg/cache"
)

// Store holds encoded responses by key string.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every entry covered by k and reports how many were removed.
	Invalidate(ctx context.Context, k Key) (int, error)
	Keys(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// StoreStats describes the backing store.
type StoreStats struct {
	Backend     string `json:"backend"`
	Entries     int    `json:"entries"`
	ShardCounts []int  `json:"shard_counts,omitempty"`
	OldestAge   string `json:"oldest_age,omitempty"`
}

type memoryStore struct {
	c *cache.ShardedCache
}

// NewMemoryStore keeps entries in a process-local sharded cache.
func NewMemoryStore(c *cache.ShardedCache) Store {
	if c == nil {
		c = cache.NewShardedCache()
	}
	return &memoryStore{c: c}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *memoryStore) Invalidate(_ context.Context, k Key) (int, error) {
	return m.c.DeleteFunc(k.Covers), nil
}

func (m *memoryStore) Keys(context.Context) ([]string, error) {
	return m.c.Keys(), nil
}

func (m *memoryStore) Stats(context.Context) (StoreStats, error) {
	s := m.c.Stats()
	return StoreStats{Backend: "memory", Entries: s.TotalItems, ShardCounts: s.ShardCounts[:], OldestAge: s.OldestAge.Round(time.Millisecond).String()}, nil
}

// Cleanup drops expired entries.
func (m *memoryStore) Cleanup() int {
	return m.c.Cleanup()
}

// DefaultRedisNamespace prefixes every key the console writes to Redis.
const DefaultRedisNamespace = "risk-console:query:"

type redisStore struct {
	client *redis.Client
	ns     string
}

// NewRedisStore shares the query cache between console instances. A
// namespace without a trailing colon gets one.
func NewRedisStore(client *redis.Client, namespace string) Store {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &redisStore{client: client, ns: namespace}
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.ns+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.ns+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *redisStore) Invalidate(ctx context.Context, k Key) (int, error) {
	if len(k.Params) > 0 {
		n, err := r.client.Del(ctx, r.ns+k.String()).Result()
		if err != nil {
			return 0, fmt.Errorf("redis del %s: %w", k, err)
		}
		return int(n), nil
	}

	// Resource names never contain glob metacharacters.
	keys, err := r.scan(ctx, r.ns+k.Resource+"*")
	if err != nil {
		return 0, err
	}
	var victims []string
	for _, full := range keys {
		if k.Covers(strings.TrimPrefix(full, r.ns)) {
			victims = append(victims, full)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, victims...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", k, err)
	}
	return int(n), nil
}

func (r *redisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.scan(ctx, r.ns+"*")
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, r.ns)
	}
	return keys, nil
}

func (r *redisStore) Stats(ctx context.Context) (StoreStats, error) {
	keys, err := r.scan(ctx, r.ns+"*")
	if err != nil {
		return StoreStats{}, err
	}
	return StoreStats{Backend: "redis", Entries: len(keys)}, nil
}

func (r *redisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
