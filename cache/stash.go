package cache

// Stash is a volatile memory tier. Entries live for the life of the process
// and evicted entries are discarded.
type Stash[K comparable, V any] struct {
	cache *BoundedCache[K, V]
}

// NewStash returns a Stash holding at most size entries.
func NewStash[K comparable, V any](size CacheSize, opts ...Option) *Stash[K, V] {
	return &Stash[K, V]{cache: NewBounded[K, V](size.Capacity(), nil, opts...)}
}

func (s *Stash[K, V]) Set(key K, value V) { s.cache.Set(key, value) }
func (s *Stash[K, V]) Get(key K) (V, bool) { return s.cache.Get(key) }
func (s *Stash[K, V]) Remove(key K) bool { return s.cache.Remove(key) }
func (s *Stash[K, V]) RemoveAll() { s.cache.RemoveAll() }
func (s *Stash[K, V]) Len() int { return s.cache.Len() }
func (s *Stash[K, V]) Stats() Stats { return s.cache.Stats() }
func (s *Stash[K, V]) Contains(key K) bool { return s.cache.Contains(key) }
func (s *Stash[K, V]) Keys() []K { return s.cache.Keys() }
func (s *Stash[K, V]) SetWithCost(key K, value V, cost int) {
	s.cache.SetWithCost(key, value, cost)
}
