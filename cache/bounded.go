package cache

import (
	"sync"
	"sync/atomic"

	"github.com/agentuity/go-cachew/logger"
	"github.com/google/uuid"
)

// Eviction describes an entry removed by capacity or cost pressure.
type Eviction[K comparable, V any] struct {
	// Source is the name of the cache that evicted the entry.
	Source string
	Key    K
	Value  V
	Cost   int
}

// EvictionHandler receives one call per evicted entry.
type EvictionHandler[K comparable, V any] func(Eviction[K, V])

// Stats is a snapshot of a memory tier's counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// node is an intrusive list element; head is MRU, tail is LRU.
type node[K comparable, V any] struct {
	key  K
	val  V
	cost int
	prev *node[K, V]
	next *node[K, V]
}

// BoundedCache is a fixed-capacity map with exact LRU eviction and an
// optional cost limit. It is safe for concurrent use.
type BoundedCache[K comparable, V any] struct {
	name      string
	capacity  int
	costLimit int
	onEvict   EvictionHandler[K, V]
	logger    logger.Logger
	metrics   *metrics

	mutex sync.Mutex
	items map[K]*node[K, V]
	head  *node[K, V]
	tail  *node[K, V]
	cost  int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewBounded returns a cache holding at most capacity entries. onEvict may
// be nil. Panics if capacity is less than 1.
func NewBounded[K comparable, V any](capacity int, onEvict EvictionHandler[K, V], opts ...Option) *BoundedCache[K, V] {
	if capacity < 1 {
		panic("cache: NewBounded requires a capacity of at least 1")
	}
	cfg := applyOptions(opts)
	label := cfg.label
	if label == "" {
		label = cfg.name
	}
	if label == "" {
		label = DefaultMetricsLabel
	}
	if cfg.name == "" {
		cfg.name = uuid.NewString()
	}
	return &BoundedCache[K, V]{
		name:      cfg.name,
		capacity:  capacity,
		costLimit: cfg.costLimit,
		onEvict:   onEvict,
		logger:    cfg.logger,
		metrics:   newMetrics(cfg.registerer, label),
		items:     make(map[K]*node[K, V], capacity),
	}
}

// Set stores value under key with unit cost.
func (c *BoundedCache[K, V]) Set(key K, value V) {
	c.SetWithCost(key, value, 1)
}

// SetWithCost inserts or replaces key and marks it most recently used, then
// evicts from the LRU end until both limits hold. The entry just written is
// never evicted by its own call; an entry whose cost alone exceeds the cost
// limit stays until the next write. Eviction handlers run after the lock is
// released and before SetWithCost returns, in LRU order.
func (c *BoundedCache[K, V]) SetWithCost(key K, value V, cost int) {
	if cost < 0 {
		cost = 0
	}
	c.mutex.Lock()
	n, ok := c.items[key]
	if ok {
		c.cost += cost - n.cost
		n.val = value
		n.cost = cost
		c.moveToFront(n)
	} else {
		n = &node[K, V]{key: key, val: value, cost: cost}
		c.items[key] = n
		c.cost += cost
		c.pushFront(n)
	}
	var evicted []*node[K, V]
	for c.overLimit() && c.tail != n {
		victim := c.tail
		c.unlink(victim)
		delete(c.items, victim.key)
		c.cost -= victim.cost
		evicted = append(evicted, victim)
	}
	c.mutex.Unlock()

	if len(evicted) == 0 {
		return
	}
	c.evictions.Add(uint64(len(evicted)))
	c.metrics.evicted(len(evicted))
	c.logger.Trace("cache %s evicted %d entries", c.name, len(evicted))
	if c.onEvict == nil {
		return
	}
	for _, victim := range evicted {
		c.onEvict(Eviction[K, V]{Source: c.name, Key: victim.key, Value: victim.val, Cost: victim.cost})
	}
}

func (c *BoundedCache[K, V]) overLimit() bool {
	if len(c.items) > c.capacity {
		return true
	}
	return c.costLimit > 0 && c.cost > c.costLimit
}

// Get returns the value for key and marks it most recently used.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mutex.Lock()
	var v V
	n, ok := c.items[key]
	if ok {
		c.moveToFront(n)
		v = n.val
	}
	c.mutex.Unlock()
	if ok {
		c.hits.Add(1)
		c.metrics.hit()
	} else {
		c.misses.Add(1)
		c.metrics.miss()
	}
	return v, ok
}

// Peek returns the value for key without touching its recency.
func (c *BoundedCache[K, V]) Peek(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if n, ok := c.items[key]; ok {
		return n.val, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is cached without touching its recency.
func (c *BoundedCache[K, V]) Contains(key K) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.items[key]
	return ok
}

// Remove deletes key and reports whether it was present. No eviction event
// is raised.
func (c *BoundedCache[K, V]) Remove(key K) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	n, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(n)
	delete(c.items, key)
	c.cost -= n.cost
	return true
}

// RemoveAll clears the cache without raising eviction events.
func (c *BoundedCache[K, V]) RemoveAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[K]*node[K, V], c.capacity)
	c.head = nil
	c.tail = nil
	c.cost = 0
}

// Len returns the number of cached entries.
func (c *BoundedCache[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Cost returns the total cost of cached entries.
func (c *BoundedCache[K, V]) Cost() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cost
}

func (c *BoundedCache[K, V]) Capacity() int { return c.capacity }
func (c *BoundedCache[K, V]) CostLimit() int { return c.costLimit }
func (c *BoundedCache[K, V]) Name() string { return c.name }

// Keys returns the cached keys ordered from least to most recently used.
func (c *BoundedCache[K, V]) Keys() []K {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]K, 0, len(c.items))
	for n := c.tail; n != nil; n = n.prev {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns a snapshot of the hit, miss and eviction counters.
func (c *BoundedCache[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *BoundedCache[K, V]) pushFront(n *node[K, V]) {
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

func (c *BoundedCache[K, V]) unlink(n *node[K, V]) {
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
	n.prev = nil
	n.next = nil
}

func (c *BoundedCache[K, V]) moveToFront(n *node[K, V]) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}
