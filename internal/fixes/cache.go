package fixes

import "sync"

// Cache maps diagnostics to the fixes the engine has suggested for them.
// Entries accumulate for the whole session; nothing evicts them unless a
// per-key limit is set. Writers (the engine connection) and readers (LSP
// handlers) run on different goroutines, hence the lock.
type Cache struct {
	mu    sync.RWMutex
	fixes map[Key][]Fix
	limit int
}

func NewCache() *Cache {
	return &Cache{
		fixes: make(map[Key][]Fix),
	}
}

// NewCacheWithLimit caps the number of fixes kept per diagnostic. A limit of
// zero means unbounded.
func NewCacheWithLimit(limit int) *Cache {
	c := NewCache()
	c.limit = limit
	return c
}

// Record appends fix under key unless an equal fix is already present.
// Duplicate suppression is a silent no-op.
func (c *Cache) Record(key Key, fix Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.fixes[key]
	for _, f := range existing {
		if f == fix {
			return
		}
	}
	if c.limit > 0 && len(existing) >= c.limit {
		return
	}
	c.fixes[key] = append(existing, fix)
}

// Lookup returns the fixes recorded for key, oldest first. An unknown key
// yields an empty result. The returned slice is a copy.
func (c *Cache) Lookup(key Key) []Fix {
	c.mu.RLock()
	defer c.mu.RUnlock()

	existing, ok := c.fixes[key]
	if !ok {
		return nil
	}
	out := make([]Fix, len(existing))
	copy(out, existing)
	return out
}

// Len reports how many distinct diagnostics have at least one fix.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fixes)
}
