package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ConsoleMetrics tracks backend, cache and page performance.
type ConsoleMetrics struct {
	// Latency histograms
	BackendLatency *LatencyHistogram
	PageLatency    *LatencyHistogram

	// Counters
	backendCalls    atomic.Uint64
	backendErrors   atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	cacheCoalesced  atomic.Uint64
	cacheStaleDrops atomic.Uint64
	invalidations   atomic.Uint64
	pageRequests    atomic.Uint64
	pageErrors      atomic.Uint64
	mutations       atomic.Uint64
	mutationsFailed atomic.Uint64
	liveSessions    atomic.Int64

	started time.Time
}

// LatencyHistogram keeps the last N samples in a ring and computes stats
// lazily.
type LatencyHistogram struct {
	mu          sync.Mutex
	ring        []float64
	next        int
	full        bool
	dirty       bool
	cachedStats LatencyStats
}

// NewConsoleMetrics creates a new metrics instance.
func NewConsoleMetrics() *ConsoleMetrics {
	return &ConsoleMetrics{
		BackendLatency: NewLatencyHistogram(1000),
		PageLatency:    NewLatencyHistogram(1000),
		started:        time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{ring: make([]float64, size), dirty: true}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = latencyMs
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99 over the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cachedStats
	}

	n := h.next
	if h.full {
		n = len(h.ring)
	}
	if n == 0 {
		h.cachedStats = LatencyStats{}
		h.dirty = false
		return h.cachedStats
	}

	sorted := make([]float64, n)
	copy(sorted, h.ring[:n])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[percentileIndex(n, 0.95)],
		P99:   sorted[percentileIndex(n, 0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

func percentileIndex(n int, p float64) int {
	i := int(float64(n) * p)
	if i >= n {
		i = n - 1
	}
	return i
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// RecordBackendCall implements httpmiddleware.DurationRecorder.
func (m *ConsoleMetrics) RecordBackendCall(d time.Duration, status int, err error) {
	m.backendCalls.Add(1)
	m.BackendLatency.RecordDuration(d)
	if err != nil || status >= 500 {
		m.backendErrors.Add(1)
	}
}

// CacheHit, CacheMiss, CacheCoalesced and CacheStaleDrop implement query.Recorder.
func (m *ConsoleMetrics) CacheHit()       { m.cacheHits.Add(1) }
func (m *ConsoleMetrics) CacheMiss()      { m.cacheMisses.Add(1) }
func (m *ConsoleMetrics) CacheCoalesced() { m.cacheCoalesced.Add(1) }
func (m *ConsoleMetrics) CacheStaleDrop() { m.cacheStaleDrops.Add(1) }

// IncrementInvalidations counts cache invalidation events.
func (m *ConsoleMetrics) IncrementInvalidations() { m.invalidations.Add(1) }

// RecordPage records a rendered page or API response.
func (m *ConsoleMetrics) RecordPage(d time.Duration, status int) {
	m.pageRequests.Add(1)
	m.PageLatency.RecordDuration(d)
	if status >= 500 {
		m.pageErrors.Add(1)
	}
}

// RecordMutation counts operator mutations.
func (m *ConsoleMetrics) RecordMutation(ok bool) {
	m.mutations.Add(1)
	if !ok {
		m.mutationsFailed.Add(1)
	}
}

// SessionOpened and SessionClosed track live WebSocket sessions.
func (m *ConsoleMetrics) SessionOpened() { m.liveSessions.Add(1) }
func (m *ConsoleMetrics) SessionClosed() { m.liveSessions.Add(-1) }

// MetricsSnapshot is a point-in-time view served by /api/metrics.
type MetricsSnapshot struct {
	BackendLatency  LatencyStats `json:"backend_latency"`
	PageLatency     LatencyStats `json:"page_latency"`
	BackendCalls    uint64       `json:"backend_calls"`
	BackendErrors   uint64       `json:"backend_errors"`
	CacheHits       uint64       `json:"cache_hits"`
	CacheMisses     uint64       `json:"cache_misses"`
	CacheCoalesced  uint64       `json:"cache_coalesced"`
	CacheStaleDrops uint64       `json:"cache_stale_drops"`
	Invalidations   uint64       `json:"invalidations"`
	PageRequests    uint64       `json:"page_requests"`
	PageErrors      uint64       `json:"page_errors"`
	Mutations       uint64       `json:"mutations"`
	MutationsFailed uint64       `json:"mutations_failed"`
	LiveSessions    int64        `json:"live_sessions"`
	GoroutineCount  int          `json:"goroutine_count"`
	HeapAlloc       uint64       `json:"heap_alloc_bytes"`
	Uptime          string       `json:"uptime"`
	Timestamp       time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *ConsoleMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		BackendLatency:  m.BackendLatency.Stats(),
		PageLatency:     m.PageLatency.Stats(),
		BackendCalls:    m.backendCalls.Load(),
		BackendErrors:   m.backendErrors.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		CacheCoalesced:  m.cacheCoalesced.Load(),
		CacheStaleDrops: m.cacheStaleDrops.Load(),
		Invalidations:   m.invalidations.Load(),
		PageRequests:    m.pageRequests.Load(),
		PageErrors:      m.pageErrors.Load(),
		Mutations:       m.mutations.Load(),
		MutationsFailed: m.mutationsFailed.Load(),
		LiveSessions:    m.liveSessions.Load(),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		Uptime:          time.Since(m.started).Round(time.Second).String(),
		Timestamp:       time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
