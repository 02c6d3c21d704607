package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	key  string
	seen time.Time
}

// Cache remembers recently archived keys, bounded by capacity and ttl.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Contains reports whether key was added within the ttl window.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(*cacheEntry).seen) <= c.ttl
}

// Add records key, refreshing its timestamp when already present.
func (c *Cache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).seen = now
		c.order.MoveToBack(el)
	} else {
		c.items[key] = c.order.PushBack(&cacheEntry{key: key, seen: now})
	}
	c.evict(now)
}

// Len returns the number of tracked keys, expired ones included until evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*cacheEntry)
		if c.order.Len() <= c.capacity && !e.seen.Before(cutoff) {
			return
		}
		c.order.Remove(front)
		delete(c.items, e.key)
	}
}
