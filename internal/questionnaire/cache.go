package questionnaire

import "sync"

// Cache is the canonical in-memory list of questionnaires built by scans.
// Entries keep the order in which they were first discovered.
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns a copy of the current list.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Entry, len(c.entries))
	copy(result, c.entries)
	return result
}

// Upsert appends entry when its ID is unknown, or replaces the stored entry
// when the content differs. It reports whether the list changed.
func (c *Cache) Upsert(entry Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.entries {
		if existing.ID != entry.ID {
			continue
		}
		if existing.Equal(entry) {
			return false
		}
		c.entries[i] = entry
		return true
	}

	c.entries = append(c.entries, entry)
	return true
}

// Remove drops every entry with the given ID.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, entry := range c.entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	c.entries = kept
}

// Reset replaces the list, mainly for tests.
func (c *Cache) Reset(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append([]Entry(nil), entries...)
}
