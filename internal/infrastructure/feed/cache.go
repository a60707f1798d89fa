package feed

import (
	"sync"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// Cache holds the latest statistics snapshot in memory.
//
// The snapshot is replaced wholesale: readers either see the complete
// previous table or the complete new one, never a mix. Reads during an
// update are served from the old snapshot without blocking.
type Cache struct {
	mu        sync.RWMutex
	stats     map[student.ID]student.Statistics
	updatedAt time.Time
}

// NewCache creates an empty statistics cache.
func NewCache() *Cache {
	return &Cache{stats: make(map[student.ID]student.Statistics)}
}

// ReplaceStats swaps in a new snapshot. Empty snapshots are ignored:
// a failed feed pull must not wipe the last known good table.
func (c *Cache) ReplaceStats(stats map[student.ID]student.Statistics) bool {
	if len(stats) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
	c.updatedAt = time.Now().UTC()
	return true
}

// Get returns the statistics of one student from the current snapshot.
func (c *Cache) Get(id student.ID) (student.Statistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// IDs returns the student ids present in the current snapshot.
func (c *Cache) IDs() []student.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]student.ID, 0, len(c.stats))
	for id := range c.stats {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the snapshot size.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stats)
}

// UpdatedAt returns the time of the last successful replacement.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
