package transform

import (
	"crypto/sha256"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes Minify by content hash. Full regenerations re-read every
// fragment, and most of them have not changed since the previous pass.
// Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[[sha256.Size]byte, string]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a cache holding up to size minified fragments. A size of
// zero or less disables memoization.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return &Cache{}, nil
	}
	entries, err := lru.New[[sha256.Size]byte, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Minify returns Minify(raw), served from the cache when possible.
func (c *Cache) Minify(raw string) string {
	if c == nil || c.entries == nil {
		return Minify(raw)
	}

	sum := sha256.Sum256([]byte(raw))
	if out, ok := c.entries.Get(sum); ok {
		c.hits.Add(1)
		return out
	}

	c.misses.Add(1)
	out := Minify(raw)
	c.entries.Add(sum, out)
	return out
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
