package engine

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/roach88/husk/internal/model"
)

// Cache is the in-memory mirror of the checkpoint store.
//
// It is a plain key to entry mapping with no eviction; its size is bounded
// by the number of tracked channels and messages. Lifecycle is tied to the
// process: it is rebuilt from checkpoints at startup.
type Cache struct {
	entries *xsync.MapOf[string, model.TrackedEntry]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: xsync.NewMapOf[string, model.TrackedEntry]()}
}

// Get returns the entry for key.
func (c *Cache) Get(key model.Key) (model.TrackedEntry, bool) {
	return c.entries.Load(key.String())
}

// Put stores the entry under its own key.
func (c *Cache) Put(e model.TrackedEntry) {
	c.entries.Store(e.Key.String(), e)
}

// Delete drops the entry for key.
func (c *Cache) Delete(key model.Key) {
	c.entries.Delete(key.String())
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Snapshot returns all entries ordered by key.
func (c *Cache) Snapshot() []model.TrackedEntry {
	out := make([]model.TrackedEntry, 0, c.entries.Size())
	c.entries.Range(func(_ string, e model.TrackedEntry) bool {
		out = append(out, e)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
