package cache

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Size    int
	HitRate float64
}

// Provider is the generic cache contract. Get reorders recency and counts a
// hit or miss; Has does neither. A zero TTL on Set falls back to the
// provider's default TTL.
type Provider[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string) bool
	Has(key string) bool
	Clear()
	Size() int
	Stats() Stats
}

// node is one entry of the recency list. expiresAt is zero for entries that
// never expire.
type node[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

// LRU is an O(1) least-recently-used cache with optional per-entry TTL.
// All operations are safe for concurrent use; the hashmap and the recency
// list are mutated under a single mutex.
type LRU[V any] struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	items      map[string]*node[V]
	head       *node[V] // sentinel, most recently used side
	tail       *node[V] // sentinel, least recently used side
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// NewLRU creates a cache holding at most maxSize entries. defaultTTL applies
// to entries set without an explicit TTL; zero means entries only leave via
// LRU eviction or explicit delete.
func NewLRU[V any](maxSize int, defaultTTL time.Duration) *LRU[V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	head := &node[V]{}
	tail := &node[V]{}
	head.next = tail
	tail.prev = head
	return &LRU[V]{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*node[V], maxSize),
		head:       head,
		tail:       tail,
		now:        time.Now,
	}
}

func (c *LRU[V]) unlink(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

func (c *LRU[V]) pushFront(n *node[V]) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRU[V]) expired(n *node[V]) bool {
	return !n.expiresAt.IsZero() && !c.now().Before(n.expiresAt)
}

// Get returns the cached value and refreshes its recency. Expired entries
// are removed and count as misses.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(n) {
		c.unlink(n)
		delete(c.items, key)
		c.misses++
		return zero, false
	}
	c.unlink(n)
	c.pushFront(n)
	c.hits++
	return n.value, true
}

// Set inserts or updates key and marks it most recently used. A ttl of zero
// uses the cache default. If the insert pushes the cache over capacity the
// least-recently-used entry is evicted regardless of its TTL.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if n, ok := c.items[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.unlink(n)
		c.pushFront(n)
		return
	}

	n := &node[V]{key: key, value: value, expiresAt: expiresAt}
	c.items[key] = n
	c.pushFront(n)

	if len(c.items) > c.maxSize {
		lru := c.tail.prev
		c.unlink(lru)
		delete(c.items, lru.key)
	}
}

// Delete removes key, reporting whether it was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(n)
	delete(c.items, key)
	return true
}

// Has reports whether key is present and unexpired. It never reorders the
// recency list and never touches the hit/miss counters.
func (c *LRU[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	return ok && !c.expired(n)
}

// Clear drops every entry. Counters are preserved.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*node[V], c.maxSize)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Size returns the current entry count, including not-yet-collected expired
// entries.
func (c *LRU[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the effectiveness counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.items), HitRate: rate}
}
