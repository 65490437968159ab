package coordinator

import "sync/atomic"

type stats struct {
	submitted  atomic.Uint64
	coalesced  atomic.Uint64
	dispatched atomic.Uint64
	delivered  atomic.Uint64
	stale      atomic.Uint64
	fallbacks  atomic.Uint64
	cacheHits  atomic.Uint64
	dropped    atomic.Uint64
}

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Submitted  uint64 `json:"submitted"`
	Coalesced  uint64 `json:"coalesced"`
	Dispatched uint64 `json:"dispatched"`
	Delivered  uint64 `json:"delivered"`
	Stale      uint64 `json:"stale"`
	Fallbacks  uint64 `json:"fallbacks"`
	CacheHits  uint64 `json:"cache_hits"`
	Dropped    uint64 `json:"dropped"`
	Cached     int    `json:"cached"`
	Sessions   int    `json:"sessions"`
}

// Stats returns the current counters.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	sessions := len(c.sessions)
	c.mu.RUnlock()

	return Stats{
		Submitted:  c.stats.submitted.Load(),
		Coalesced:  c.stats.coalesced.Load(),
		Dispatched: c.stats.dispatched.Load(),
		Delivered:  c.stats.delivered.Load(),
		Stale:      c.stats.stale.Load(),
		Fallbacks:  c.stats.fallbacks.Load(),
		CacheHits:  c.stats.cacheHits.Load(),
		Dropped:    c.stats.dropped.Load(),
		Cached:     c.cache.len(),
		Sessions:   sessions,
	}
}

// PurgeCache drops every cached stream.
func (c *Coordinator) PurgeCache() {
	c.cache.flush()
}
