// ABOUTME: Thread-safe TTL cache for deduplicating Telegram update ids.
// ABOUTME: Drops updates redelivered after a restart or long-poll retry.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached update id.
type entry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache tracks recently seen update ids so the adapter can skip updates the
// Bot API redelivers. TTL-based and size-limited; insertion order is kept in
// a doubly-linked list for O(1) eviction of the oldest id.
type Cache struct {
	mu      sync.Mutex
	seen    map[int]*entry
	order   *list.List // update ids in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[int]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Seen atomically checks whether an update id has been processed and marks it
// if not. Returns true if the id was already seen (duplicate), false if it is
// new and now marked. Concurrent callers for the same id resolve to exactly
// one false.
func (c *Cache) Seen(updateID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[updateID]
	if ok && time.Since(e.timestamp) < c.ttl {
		return true // Already seen, skip
	}

	// Not seen (or expired), mark it
	c.markLocked(updateID)
	return false
}

// markLocked is the internal mark implementation. Must be called with mu held.
func (c *Cache) markLocked(updateID int) {
	now := time.Now()

	// If the id already exists, update timestamp and move to back
	if e, exists := c.seen[updateID]; exists {
		e.timestamp = now
		c.order.MoveToBack(e.element)
		return
	}

	// Evict oldest if at capacity
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	// Add new entry
	elem := c.order.PushBack(updateID)
	c.seen[updateID] = &entry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	updateID, _ := front.Value.(int)
	c.order.Remove(front)
	delete(c.seen, updateID)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for updateID, e := range c.seen {
		if now.Sub(e.timestamp) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, updateID)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
