package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// historyTurnsInKey bounds how much dialogue history participates in the
// cache key, so an old conversation prefix does not defeat caching.
const historyTurnsInKey = 3

// CacheKey derives a stable key from the normalized query and the tail of
// the dialogue history.
func CacheKey(query string, history []string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	if len(history) > historyTurnsInKey {
		history = history[len(history)-historyTurnsInKey:]
	}
	for _, turn := range history {
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(turn))))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	result    ConsultResult
	createdAt time.Time
}

// CacheStats describes the cache population at a point in time.
type CacheStats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// ConsultationCache is an in-memory TTL cache for consultation responses.
// Expiry is lazy: entries are evicted on lookup, there is no background
// sweep. Concurrent writers to the same key resolve by last write wins.
type ConsultationCache struct {
	mu            sync.RWMutex
	entries       map[string]cacheEntry
	ttl           time.Duration
	minConfidence float32
	now           func() time.Time
}

func NewConsultationCache(ttl time.Duration, minConfidence float32) *ConsultationCache {
	return &ConsultationCache{
		entries:       make(map[string]cacheEntry),
		ttl:           ttl,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

// Get returns a live entry. An expired entry is treated as a miss and
// evicted at lookup time.
func (c *ConsultationCache) Get(key string) (ConsultResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ConsultResult{}, false
	}

	if c.now().Sub(entry.createdAt) >= c.ttl {
		c.mu.Lock()
		// Re-check after lock upgrade: a fresh entry may have replaced the
		// expired one.
		if current, still := c.entries[key]; still && c.now().Sub(current.createdAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return ConsultResult{}, false
	}

	return entry.result, true
}

// Put stores a response unless its confidence is below the configured
// threshold; low-value answers are recomputed instead of cached.
func (c *ConsultationCache) Put(key string, result ConsultResult) {
	if result.Confidence < c.minConfidence {
		return
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, createdAt: c.now()}
	c.mu.Unlock()
}

// Stats counts live and expired entries without evicting anything.
func (c *ConsultationCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Total: len(c.entries)}
	now := c.now()
	for _, entry := range c.entries {
		if now.Sub(entry.createdAt) >= c.ttl {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats
}

// Clear drops every entry.
func (c *ConsultationCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
