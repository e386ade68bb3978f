/*
Package cache provides a small in-memory TTL cache for derived results.

PURPOSE:
  Compliance ledgers and dashboard payloads are recomputed from raw
  records on every request. For clients with years of payment history
  that work is repeated needlessly between writes, so handlers cache
  the computed result and invalidate on any write to the same client.

KEY CONCEPTS:
  TTL:        Every entry carries its own time-to-live. Expired entries
              are dropped lazily on the next Get.
  Pattern
  invalidation: A write to one client must not flush everything. Keys
              embed the client ID, and InvalidatePattern removes every
              key containing a substring.

USAGE:
  c := cache.New()
  c.Set(cache.DashboardKey(clientID), payload, 5*time.Minute)
  if v, ok := c.Get(cache.DashboardKey(clientID)); ok { ... }
  c.InvalidatePattern(string(clientID))

SEE ALSO:
  - api/handlers.go: the read handlers that consult the cache
*/
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is applied when Set receives a non-positive ttl.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expiredAt(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is a concurrency-safe in-memory cache with per-entry TTLs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is swapped in tests to control expiry.
	now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false if the key is missing
// or its entry has expired. Expired entries are removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.expiredAt(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since we released the read lock.
		if cur, ok := c.entries[key]; ok && cur.expiredAt(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl falls back to DefaultTTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Clear removes a single key.
func (c *Cache) Clear(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// InvalidatePattern removes every entry whose key contains pattern as a
// substring. Used after writes: the pattern is the client ID, which every
// per-client key embeds.
func (c *Cache) InvalidatePattern(pattern string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Sweep removes every expired entry and reports how many were dropped.
// Get already evicts lazily; Sweep exists so long-idle keys do not pin
// memory between reads. Called periodically by the Janitor.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// =============================================================================
// KEY BUILDERS
// =============================================================================
//
// Keys embed the client ID so InvalidatePattern(clientID) flushes every
// cached view of that client in one call.

func DashboardKey(clientID string) string {
	return fmt.Sprintf("dashboard_%s", clientID)
}

func ComplianceKey(clientID string) string {
	return fmt.Sprintf("compliance_%s", clientID)
}

func PeriodsKey(clientID string) string {
	return fmt.Sprintf("periods_%s", clientID)
}

func SummaryKey(clientID string, year int) string {
	return fmt.Sprintf("summary_%s_%d", clientID, year)
}

const ClientListKey = "clients_all"
