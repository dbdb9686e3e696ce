// Package cache provides a capacity- and TTL-bounded cache for tool
// response payloads, keyed by a stable fingerprint of the tool name
// and its normalized parameters.
package cache

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// QueryCache wraps an expirable LRU of raw JSON tool results.
type QueryCache struct {
	cache *lru.LRU[string, json.RawMessage]
}

// New builds a QueryCache bounded to maxEntries with the given
// time-to-live applied to every inserted entry.
func New(maxEntries int, ttl time.Duration) *QueryCache {
	return &QueryCache{cache: lru.NewLRU[string, json.RawMessage](maxEntries, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *QueryCache) Get(key string) (json.RawMessage, bool) {
	return c.cache.Get(key)
}

// Insert stores value under key, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *QueryCache) Insert(key string, value json.RawMessage) {
	c.cache.Add(key, value)
}
