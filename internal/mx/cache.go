// Package mx classifies email domains by mailbox provider from their MX
// records, with an in-memory FIFO cache and a retrying resolver.
package mx

import "sync"

// DefaultCacheSize is the capacity used when NewDomainCache gets a
// non-positive size.
const DefaultCacheSize = 1000

// DomainCache maps domains to provider labels. Capacity is bounded and the
// oldest inserted entry is evicted first; reads do not refresh an entry.
// It is safe for concurrent use.
type DomainCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]string
	order   []string
}

// NewDomainCache creates a cache holding at most maxSize domains.
func NewDomainCache(maxSize int) *DomainCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &DomainCache{
		maxSize: maxSize,
		entries: make(map[string]string, maxSize),
		order:   make([]string, 0, maxSize),
	}
}

// Get returns the cached provider for domain.
func (c *DomainCache) Get(domain string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[domain]
	return p, ok
}

// Set stores provider for domain. Overwriting an existing domain keeps its
// original insertion position and never evicts.
func (c *DomainCache) Set(domain, provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[domain]; ok {
		c.entries[domain] = provider
		return
	}
	for len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[domain] = provider
	c.order = append(c.order, domain)
}

// Len returns the number of cached domains.
func (c *DomainCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MaxSize returns the cache capacity.
func (c *DomainCache) MaxSize() int {
	return c.maxSize
}
