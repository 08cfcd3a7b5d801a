package adapters

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
)

// LRUCache is a bounded completion cache whose entries expire after a fixed TTL.
type LRUCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewLRUCache creates a cache holding at most capacity entries. A ttl of zero
// disables expiry.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache{lru: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int { return c.lru.Len() }

// Ensure LRUCache implements the Cache interface.
var _ ports.Cache = (*LRUCache)(nil)
