package annotation

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// sessionCache holds the most recently used live sessions. onEvict runs for
// every session leaving the cache, evicted or deleted, on the goroutine that
// caused it and outside the cache lock.
type sessionCache struct {
	lru *lru.Cache[string, *LiveSession]
}

func newSessionCache(capacity int, onEvict func(id string, s *LiveSession)) *sessionCache {
	if capacity < 1 {
		capacity = 1
	}
	// only a non-positive size is rejected
	c, _ := lru.NewWithEvict(capacity, onEvict)
	return &sessionCache{lru: c}
}

// Get returns a cached session and marks it as recently used
func (c *sessionCache) Get(id string) (*LiveSession, bool) {
	return c.lru.Get(id)
}

// Set caches s, evicting the least recently used session when full
func (c *sessionCache) Set(id string, s *LiveSession) {
	c.lru.Add(id, s)
}

func (c *sessionCache) Delete(id string) {
	c.lru.Remove(id)
}

func (c *sessionCache) Len() int {
	return c.lru.Len()
}
