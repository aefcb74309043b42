package apiclient

import (
	"strings"
	"sync"
)

// cache holds raw response bodies keyed by request path and query.
// gen is bumped on every invalidation so that reads started before it do not store stale bodies.
type cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	gen     uint64
}

func newCache() *cache {
	return &cache{entries: make(map[string][]byte)}
}

func (c *cache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.entries[key]
	return body, ok
}

func (c *cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// storeIfCurrent keeps body unless the cache was invalidated since gen was read.
func (c *cache) storeIfCurrent(key string, body []byte, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = body
	return true
}

func (c *cache) set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = body
}

func (c *cache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gen++
}

// invalidateLists drops the list keys of each resource path: the bare path and the path with a query.
func (c *cache) invalidateLists(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		for _, p := range paths {
			if key == p || strings.HasPrefix(key, p+"?") {
				delete(c.entries, key)
				break
			}
		}
	}
	c.gen++
}

// invalidatePrefix drops every key under the given paths, items included.
func (c *cache) invalidatePrefix(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		for _, p := range paths {
			if key == p || strings.HasPrefix(key, p+"?") || strings.HasPrefix(key, p+"/") {
				delete(c.entries, key)
				break
			}
		}
	}
	c.gen++
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.gen++
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
