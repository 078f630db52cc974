package cache

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const numShards = 16

// ShardedCache is a byte-value cache with per-entry expiry, split across
// shards to keep lock contention low.
type ShardedCache struct {
	shards [numShards]*shard
	now    func() time.Time
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero = never
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewShardedCache creates an empty cache.
func NewShardedCache() *ShardedCache {
	c := &ShardedCache{now: time.Now}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard{items: make(map[string]entry)}
	}
	return c
}

// SetClock replaces the time source (tests).
func (c *ShardedCache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *ShardedCache) getShard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores value under key for ttl (0 = no expiry).
func (c *ShardedCache) Set(key string, value []byte, ttl time.Duration) {
	now := c.now()
	e := entry{value: value, storedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
}

// Get returns the value if present and not expired.
func (c *ShardedCache) Get(key string) ([]byte, bool) {
	v, _, ok := c.GetWithAge(key)
	return v, ok
}

// GetWithAge returns the value and how long ago it was stored.
func (c *ShardedCache) GetWithAge(key string) ([]byte, time.Duration, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	now := c.now()
	if !ok || e.expired(now) {
		return nil, 0, false
	}
	return e.value, now.Sub(e.storedAt), true
}

// Delete removes key.
func (c *ShardedCache) Delete(key string) bool {
	s := c.getShard(key)
	s.mu.Lock()
	_, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	return ok
}

// DeleteFunc removes every key for which match returns true.
func (c *ShardedCache) DeleteFunc(match func(key string) bool) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k := range s.items {
			if match(k) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// DeletePrefix removes every key starting with prefix.
func (c *ShardedCache) DeletePrefix(prefix string) int {
	return c.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// Len returns total items across all shards, expired ones included until
// the next Cleanup.
func (c *ShardedCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup drops expired entries.
func (c *ShardedCache) Cleanup() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Keys lists live keys (for the admin cache view).
func (c *ShardedCache) Keys() []string {
	now := c.now()
	var keys []string
	for _, s := range c.shards {
		s.mu.RLock()
		for k, e := range s.items {
			if !e.expired(now) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
	}
	return keys
}

// CacheStats provides cache statistics.
type CacheStats struct {
	TotalItems  int            `json:"total_items"`
	ShardCounts [numShards]int `json:"shard_counts"`
	OldestAge   time.Duration  `json:"oldest_age"`
}

// Stats returns cache statistics.
func (c *ShardedCache) Stats() CacheStats {
	stats := CacheStats{}
	var oldest time.Time

	for i, s := range c.shards {
		s.mu.RLock()
		stats.ShardCounts[i] = len(s.items)
		stats.TotalItems += len(s.items)
		for _, e := range s.items {
			if oldest.IsZero() || e.storedAt.Before(oldest) {
				oldest = e.storedAt
			}
		}
		s.mu.RUnlock()
	}

	if !oldest.IsZero() {
		stats.OldestAge = c.now().Sub(oldest)
	}
	return stats
}
