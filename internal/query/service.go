package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"risk-console/internal/events"
)

// DefaultTTL is how long a response stays fresh without invalidation.
const DefaultTTL = 30 * time.Second

// DefaultFetchTimeout bounds a shared fetch once it no longer follows the
// context of the caller that started it.
const DefaultFetchTimeout = 15 * time.Second

// Recorder receives cache outcome counters.
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheCoalesced()
	CacheStaleDrop()
}

// Cache is the console's explicit query cache: keyed responses with TTL,
// coalescing of identical in-flight keys and invalidation after mutations.
type Cache struct {
	store        Store
	ttl          time.Duration
	fetchTimeout time.Duration
	bus          *events.Bus
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
	group        singleflight.Group

	mu          sync.Mutex
	gen         uint64
	inflight    int
	flights     map[string]int
	invalidated map[string]invalidation

	hits, misses, coalesced, staleDrops, invalidations atomic.Uint64
}

type invalidation struct {
	key Key
	gen uint64
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds each shared backend call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithBus(bus *events.Bus) Option { return func(c *Cache) { c.bus = bus } }

func WithRecorder(r Recorder) Option { return func(c *Cache) { c.recorder = r } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a cache over store; a nil store means an in-memory store.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore(nil)
	}
	c := &Cache{
		store:       store,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
		now:          time.Now,
		flights:      make(map[string]int),
		invalidated:  make(map[string]invalidation),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Fetch returns the cached value for key or calls fn once for all concurrent
// callers of the same key. The result is stored only when no invalidation
// covering key happened while fn was running.
//
// fn runs detached from any single caller's cancellation, bounded by the
// fetch timeout. Each caller still returns early when its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ks := key.String()

	if raw, ok, err := c.store.Get(ctx, ks); err != nil {
		c.logger.Warn("query cache read failed", "key", ks, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.hit()
			return v, nil
		}
		c.logger.Warn("query cache entry undecodable", "key", ks)
	}
	c.miss()

	ch := c.group.DoChan(ks, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		start := c.begin(ks)
		v, err := fn(fctx)
		if err != nil {
			c.end(key, start)
			return nil, err
		}
		raw, mErr := json.Marshal(v)
		if mErr != nil {
			c.end(key, start)
			return nil, fmt.Errorf("encode %s: %w", ks, mErr)
		}
		if c.end(key, start) {
			if err := c.store.Set(fctx, ks, raw, c.ttl); err != nil {
				c.logger.Warn("query cache write failed", "key", ks, "error", err)
			}
		} else {
			c.staleDrop()
			c.logger.Debug("dropped stale response", "key", ks)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.coalesce()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

func (c *Cache) begin(ks string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	c.flights[ks]++
	return c.gen
}

// end reports whether the response fetched since start is still current.
func (c *Cache) end(key Key, start uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := true
	ks := key.String()
	for _, inv := range c.invalidated {
		if inv.gen > start && inv.key.Covers(ks) {
			fresh = false
			break
		}
	}
	c.inflight--
	if c.flights[ks]--; c.flights[ks] <= 0 {
		delete(c.flights, ks)
	}
	if c.inflight == 0 {
		clear(c.invalidated)
	}
	return fresh
}

// Invalidate drops every entry covered by the given keys and publishes
// one events.CacheInvalidation. In-flight fetches of covered keys are
// forgotten so later callers start a fresh backend call.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) int {
	if len(keys) == 0 {
		return 0
	}
	c.mu.Lock()
	c.gen++
	for _, k := range keys {
		if c.inflight > 0 {
			c.invalidated[k.String()] = invalidation{key: k, gen: c.gen}
		}
		for ks := range c.flights {
			if k.Covers(ks) {
				c.group.Forget(ks)
			}
		}
	}
	c.mu.Unlock()

	removed := 0
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
		n, err := c.store.Invalidate(ctx, k)
		if err != nil {
			c.logger.Warn("query cache invalidation failed", "key", k.String(), "error", err)
			continue
		}
		removed += n
	}
	c.invalidations.Add(1)
	c.logger.Debug("query cache invalidated", "keys", names, "removed", removed)
	c.bus.Publish(events.EventCacheInvalidated, events.CacheInvalidation{
		Type:    events.EventCacheInvalidated,
		Keys:    names,
		Removed: removed,
		At:      c.now(),
	})
	return removed
}

// Run periodically drops expired entries for stores that need it.
func (c *Cache) Run(ctx context.Context, every time.Duration) {
	cl, ok := c.store.(interface{ Cleanup() int })
	if !ok {
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cl.Cleanup(); n > 0 {
				c.logger.Debug("query cache cleanup", "removed", n)
			}
		}
	}
}

// Stats is the /api/cache view.
type Stats struct {
	Store         StoreStats `json:"store"`
	TTL           string     `json:"ttl"`
	Keys          []string   `json:"keys"`
	Hits          uint64     `json:"hits"`
	Misses        uint64     `json:"misses"`
	Coalesced     uint64     `json:"coalesced"`
	StaleDrops    uint64     `json:"stale_drops"`
	Invalidations uint64     `json:"invalidations"`
	Generation    uint64     `json:"generation"`
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st, err := c.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return Stats{
		Store:         st,
		TTL:           c.ttl.String(),
		Keys:          keys,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Coalesced:     c.coalesced.Load(),
		StaleDrops:    c.staleDrops.Load(),
		Invalidations: c.invalidations.Load(),
		Generation:    gen,
	}, nil
}

func (c *Cache) hit() {
	c.hits.Add(1)
	if c.recorder != nil {
		c.recorder.CacheHit()
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.recorder != nil {
		c.recorder.CacheMiss()
	}
}

func (c *Cache) coalesce() {
	c.coalesced.Add(1)
	if c.recorder != nil {
		c.recorder.CacheCoalesced()
	}
}

func (c *Cache) staleDrop() {
	c.staleDrops.Add(1)
	if c.recorder != nil {
		c.recorder.CacheStaleDrop()
	}
}
