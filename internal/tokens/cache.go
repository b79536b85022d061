// Package tokens keeps the API tokens accepted by the service in memory.
package tokens

import (
	"context"
	"sync"
)

// Entry holds per-token settings.
type Entry struct {
	// RateLimit is the number of requests per limiter interval; 0 disables
	// limiting for the token.
	RateLimit int
}

// Repository loads the full token set.
type Repository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

// Cache is the in-memory token set. It is not ready until the first
// Replace.
type Cache struct {
	mu sync.RWMutex
	m  map[string]Entry
}

// NewCache returns an empty, not yet ready cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole token set.
func (c *Cache) Replace(m map[string]Entry) {
	cp := make(map[string]Entry, len(m))
	for k, v := range m {
		cp[k] = v
	}
	c.mu.Lock()
	c.m = cp
	c.mu.Unlock()
}

// Ready returns true if the cache has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m != nil
}

// Validate reports whether token is known.
func (c *Cache) Validate(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.m[token]
	return ok
}

// RateLimit returns the limit of token, or 0 for unknown tokens.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[token].RateLimit
}

// StaticRepository serves a fixed token -> rate limit map, typically from
// configuration.
type StaticRepository map[string]int

// LoadTokens implements Repository.
func (r StaticRepository) LoadTokens(context.Context) (map[string]Entry, error) {
	out := make(map[string]Entry, len(r))
	for k, v := range r {
		out[k] = Entry{RateLimit: v}
	}
	return out, nil
}
