// ABOUTME: Thread-safe TTL cache for dropping duplicate protocol messages by ID.
// ABOUTME: Used by the workflow engine before events are sequenced.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached key.
type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache tracks recently seen message IDs so a retried or re-delivered
// protocol message is processed only once. Entries expire after a TTL, and
// a size cap bounds memory: when full, the oldest entry is evicted in O(1)
// via an insertion-order list.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size. A background
// goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.expireLoop()
	return c
}

// Seen atomically checks whether key was seen within the TTL and marks it
// if not. Returns true for a duplicate, false for a new key that is now
// marked. The single atomic operation avoids check-then-mark races.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.seen[key]; ok && now.Sub(e.at) < c.ttl {
		// Refresh: a duplicate arriving keeps the key hot.
		e.at = now
		c.order.MoveToBack(e.elem)
		return true
	}

	if e, ok := c.seen[key]; ok {
		// Expired entry for the same key: reuse its slot.
		e.at = now
		c.order.MoveToBack(e.elem)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[key] = &entry{at: now, elem: c.order.PushBack(key)}
	return false
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest removes the oldest entry. Caller holds mu.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// expireLoop periodically drops expired entries until Close.
func (c *Cache) expireLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire removes all entries older than the TTL.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.seen {
		if now.Sub(e.at) > c.ttl {
			c.order.Remove(e.elem)
			delete(c.seen, key)
		}
	}
}

// Close stops the background expiry goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
