// Package dedup tracks which local path first materialized each content digest during a run.
package dedup

import (
	"sync"

	"go.trai.ch/haul/internal/core/domain"
)

// Cache maps a content digest to the first local path that holds it.
// It lives for one sync run and is never persisted.
type Cache struct {
	mu      sync.Mutex
	paths   map[domain.Digest]string
	pending map[domain.Digest]*claim
}

type claim struct {
	done chan struct{}
	path string
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		paths:   make(map[domain.Digest]string),
		pending: make(map[domain.Digest]*claim),
	}
}

// Lookup returns the path registered for d.
func (c *Cache) Lookup(d domain.Digest) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.paths[d]
	return p, ok
}

// Register records path for d unless d is already known. The first writer wins.
// It reports whether path became the owner.
func (c *Cache) Register(d domain.Digest, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.paths[d]; ok {
		return false
	}
	c.paths[d] = path
	if cl, ok := c.pending[d]; ok {
		delete(c.pending, d)
		cl.path = path
		close(cl.done)
	}
	return true
}

// Rebind moves d from one path to another. It reports false and changes nothing
// unless d is currently registered at from.
func (c *Cache) Rebind(d domain.Digest, from, to string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paths[d] != from {
		return false
	}
	c.paths[d] = to
	return true
}

// Claim reserves d before a download starts so concurrent workers do not fetch
// the same content twice. When won is true the caller must call Register or Abandon.
// When won is false, wait blocks until the owner settles and returns its path,
// or false if the owner abandoned the claim.
func (c *Cache) Claim(d domain.Digest) (won bool, wait func() (string, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.paths[d]; ok {
		return false, func() (string, bool) { return p, true }
	}
	if cl, ok := c.pending[d]; ok {
		return false, func() (string, bool) {
			<-cl.done
			return cl.path, cl.path != ""
		}
	}
	c.pending[d] = &claim{done: make(chan struct{})}
	return true, nil
}

// Abandon releases a claim without registering a path, waking any waiters.
func (c *Cache) Abandon(d domain.Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.pending[d]; ok {
		delete(c.pending, d)
		close(cl.done)
	}
}

// Len returns the number of registered digests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}
