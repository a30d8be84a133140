// Package cache provides a bounded LRU cache for compiled plans.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// LRU is a size-bounded least recently used cache. It is safe for
// concurrent use.
type LRU[V any] struct {
	mu      sync.Mutex
	data    map[string]*node[V]
	maxSize int
	head    *node[V]
	tail    *node[V]
	stats   Stats
}

// node represents a node in the doubly-linked list for LRU
type node[V any] struct {
	key   string
	value V
	prev  *node[V]
	next  *node[V]
}

// New creates a cache holding at most maxSize entries.
func New[V any](maxSize int) *LRU[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[V]{
		data:    make(map[string]*node[V]),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	c.stats.Hits++
	return n.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}
	if len(c.data) >= c.maxSize {
		c.remove(c.tail)
		c.stats.Evictions++
	}
	n := &node[V]{key: key, value: value}
	c.addToFront(n)
	c.data[key] = n
}

// Invalidate removes key.
func (c *LRU[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		c.remove(n)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*node[V])
	c.head, c.tail = nil, nil
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.data)
	return s
}

func (c *LRU[V]) addToFront(n *node[V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *LRU[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *LRU[V]) remove(n *node[V]) {
	c.unlink(n)
	delete(c.data, n.key)
}

// Key hashes parts into a cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
