package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// SchoolCache is a TTL cache whose entries are bucketed by school so that a
// single write can drop every cached payload of that school at once.
type SchoolCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	buckets map[string]map[string]entry
	gens    map[string]uint64
	now     func() time.Time
}

func NewSchoolCache(ttl time.Duration) *SchoolCache {
	return &SchoolCache{
		ttl:     ttl,
		buckets: make(map[string]map[string]entry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Get returns a live entry. Expired entries are treated as misses and removed lazily.
func (c *SchoolCache) Get(schoolID, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.buckets[schoolID][key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.buckets[schoolID][key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.buckets[schoolID], key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Generation returns the school's invalidation counter. Read it before computing a
// value and pass it to Set.
func (c *SchoolCache) Generation(schoolID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[schoolID]
}

// Set stores value unless the school was invalidated after gen was read.
// It reports whether the value was stored.
func (c *SchoolCache) Set(schoolID, key string, gen uint64, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[schoolID] != gen {
		return false
	}

	bucket, ok := c.buckets[schoolID]
	if !ok {
		bucket = make(map[string]entry)
		c.buckets[schoolID] = bucket
	}
	bucket[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	return true
}

// InvalidateSchool drops every entry cached for the school and discards
// in-flight writes computed before the call.
func (c *SchoolCache) InvalidateSchool(schoolID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buckets, schoolID)
	c.gens[schoolID]++
}

// Len returns the number of entries held for a school, expired ones included.
func (c *SchoolCache) Len(schoolID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buckets[schoolID])
}
