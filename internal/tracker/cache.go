package tracker

import (
	"sync"
	"time"
)

// Factory builds a Handle for a token and project.
type Factory func(token string, projectID int64) Handle

// ClientFactory returns a Factory backed by real API clients.
func ClientFactory(baseURL string, timeout time.Duration) Factory {
	return func(token string, projectID int64) Handle {
		return NewClient(baseURL, token, timeout).ForProject(projectID)
	}
}

type cacheKey struct {
	identity  string
	projectID int64
}

type cacheEntry struct {
	token  string
	handle Handle
}

// Cache holds one Handle per (identity, project). A handle built for an
// old token is replaced the next time the identity asks with a new one.
type Cache struct {
	mu      sync.Mutex
	factory Factory
	entries map[cacheKey]cacheEntry
}

// NewCache creates a cache that builds handles with factory.
func NewCache(factory Factory) *Cache {
	return &Cache{
		factory: factory,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// HandleFor returns the cached handle for identity and project, building
// one when none exists or the token changed.
func (c *Cache) HandleFor(identity, token string, projectID int64) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{identity: identity, projectID: projectID}
	if e, ok := c.entries[key]; ok && e.token == token {
		return e.handle
	}
	h := c.factory(token, projectID)
	c.entries[key] = cacheEntry{token: token, handle: h}
	return h
}

// Forget drops every handle held for identity.
func (c *Cache) Forget(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.identity == identity {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
