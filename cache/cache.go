// Package cache keeps recently crawled site records in memory so repeated
// URLs across batches skip the browser.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/contactcrawl/models"
)

type entry struct {
	record    models.SiteRecord
	createdAt time.Time
}

// Cache is an in-memory site record cache. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries records. When ttl > 0 a
// background goroutine evicts records older than ttl every ttl/2 (at least
// once a minute).
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	if ttl > 0 {
		go c.cleanupLoop(ttl)
	}
	return c
}

// Key derives the cache key for a site URL. Surrounding whitespace and a
// single trailing slash do not change the key.
func Key(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached record for key if it is younger than maxAge.
// A non-positive maxAge disables lookups.
func (c *Cache) Get(key string, maxAge time.Duration) (models.SiteRecord, bool) {
	if maxAge <= 0 {
		return models.SiteRecord{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return models.SiteRecord{}, false
	}
	return e.record, true
}

// Set stores a record. At capacity an arbitrary entry is evicted first.
func (c *Cache) Set(key string, rec models.SiteRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{record: rec, createdAt: c.now()}
}

// Len returns the number of stored records, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) cleanupLoop(ttl time.Duration) {
	interval := ttl / 2
	if interval > time.Minute || interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		c.evictOlderThan(ttl)
	}
}

func (c *Cache) evictOlderThan(ttl time.Duration) {
	cutoff := c.now().Add(-ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
