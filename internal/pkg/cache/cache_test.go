package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(ttl time.Duration) (*SchoolCache, *time.Time) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	c := NewSchoolCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSchoolCache_SetGet(t *testing.T) {
	c, _ := newTestCache(5 * time.Minute)

	c.Set("school-a", "k1", 0, []byte(`{"a":1}`))

	got, ok := c.Get("school-a", "k1")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"a":1}`), got)

	_, ok = c.Get("school-b", "k1")
	assert.False(t, ok)
}

func TestSchoolCache_Expiry(t *testing.T) {
	c, now := newTestCache(300 * time.Second)
	c.Set("school-a", "k1", 0, []byte("x"))

	*now = now.Add(299 * time.Second)
	_, ok := c.Get("school-a", "k1")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	_, ok = c.Get("school-a", "k1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len("school-a"))
}

func TestSchoolCache_InvalidateSchool(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("school-a", "k1", 0, []byte("1"))
	c.Set("school-a", "k2", 0, []byte("2"))
	c.Set("school-b", "k1", 0, []byte("3"))

	c.InvalidateSchool("school-a")

	assert.Equal(t, 0, c.Len("school-a"))
	got, ok := c.Get("school-b", "k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), got)
}

func TestSchoolCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	gen := c.Generation("school-a")
	c.InvalidateSchool("school-a")
	assert.False(t, c.Set("school-a", "k1", gen, []byte("stale")))
	_, ok := c.Get("school-a", "k1")
	assert.False(t, ok)

	other := c.Generation("school-b")
	assert.True(t, c.Set("school-b", "k1", other, []byte("fresh")))

	gen = c.Generation("school-a")
	assert.True(t, c.Set("school-a", "k1", gen, []byte("fresh")))
	got, ok := c.Get("school-a", "k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), got)
}

func TestSchoolCache_Concurrent(t *testing.T) {
	c := NewSchoolCache(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("school-a", "k", 0, []byte{byte(i)})
			c.Get("school-a", "k")
			if i%10 == 0 {
				c.InvalidateSchool("school-a")
			}
		}(i)
	}
	wg.Wait()
}
