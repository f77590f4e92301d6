package docsgate

import (
	"sync"
	"time"

	"github.com/eringen/docsgate/collection"
)

// ContentCache holds the loaded collections and reloads them from disk once
// the TTL has passed. A TTL <= 0 keeps the first load forever.
type ContentCache struct {
	mu      sync.RWMutex
	cols    []*collection.Collection
	fetched time.Time
	ttl     time.Duration
	loader  func() ([]*collection.Collection, error)
}

// NewContentCache creates a ContentCache filled by loader.
func NewContentCache(ttl time.Duration, loader func() ([]*collection.Collection, error)) *ContentCache {
	return &ContentCache{ttl: ttl, loader: loader}
}

func (c *ContentCache) valid() bool {
	if c.cols == nil {
		return false
	}
	return c.ttl <= 0 || time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.cols = nil
	c.mu.Unlock()
}

// Collections returns the cached collections after ensuring they are fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ContentCache) Collections() ([]*collection.Collection, error) {
	c.mu.RLock()
	if c.valid() {
		cols := c.cols
		c.mu.RUnlock()
		return cols, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.cols, nil
	}
	cols, err := c.loader()
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []*collection.Collection{}
	}
	c.cols = cols
	c.fetched = time.Now()
	return c.cols, nil
}

// Find looks a request path up across every collection.
func (c *ContentCache) Find(path string) (*collection.Collection, collection.Entry, error) {
	cols, err := c.Collections()
	if err != nil {
		return nil, collection.Entry{}, err
	}
	for _, col := range cols {
		if e, ok := col.FindByPermalink(path); ok {
			return col, e, nil
		}
	}
	return nil, collection.Entry{}, collection.ErrNotFound
}
