package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-cachew/logger"
	"github.com/agentuity/go-cachew/resilience"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type demotion[K comparable, V any] struct {
	key   K
	value V
}

// HydraStats is a snapshot of a Hydra's memory and demotion counters.
type HydraStats struct {
	Stats
	Demoted    uint64
	Failed     uint64
	Dropped    uint64
	Rejected   uint64
	Mismatched uint64
	Pending    int
}

// Hydra is a memory tier whose evictions are demoted to a durable Store in
// the background. Reads never fall through to the durable tier. A Set that
// races a pending demotion of the same key is not ordered against it.
type Hydra[K comparable, V any] struct {
	id      string
	memory  *BoundedCache[K, V]
	store   Store[K, V]
	logger  logger.Logger
	metrics *metrics
	breaker *resilience.CircuitBreaker
	timeout time.Duration

	queue chan demotion[K, V]
	group errgroup.Group

	mutex   sync.Mutex
	closed  bool
	pending int
	waiters []chan struct{}
	once    sync.Once

	demoted    atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
	rejected   atomic.Uint64
	mismatched atomic.Uint64
}

// NewHydra returns a Hydra holding size entries in memory. A nil store
// selects a Silo named after the instance id. Close must be called to stop
// the demotion workers.
func NewHydra[K comparable, V any](size CacheSize, store Store[K, V], opts ...Option) *Hydra[K, V] {
	cfg := applyOptions(opts)
	id := uuid.NewString()
	if store == nil {
		store = NewSilo[K, V](id, nil, opts...)
	}
	if cfg.queueSize < 1 {
		cfg.queueSize = 1
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	h := &Hydra[K, V]{
		id:      id,
		store:   store,
		logger:  cfg.logger.WithPrefix("[hydra]").With(map[string]interface{}{"hydra": id}),
		timeout: cfg.demoteTimeout,
		queue:   make(chan demotion[K, V], cfg.queueSize),
	}
	if cfg.breaker != nil {
		h.breaker = resilience.NewCircuitBreaker(*cfg.breaker)
		h.breaker.OnStateChange(func(from, to resilience.CircuitBreakerState) {
			h.logger.Warn("durable tier breaker %s -> %s", from, to)
		})
	}
	label := cfg.name
	if label == "" {
		label = HydraMetricsLabel
	}
	memOpts := append(append([]Option(nil), opts...), WithName(id), withMetricsLabel(label))
	h.memory = NewBounded[K, V](size.Capacity(), h.onEvict, memOpts...)
	h.metrics = h.memory.metrics
	for i := 0; i < cfg.workers; i++ {
		h.group.Go(func() error {
			h.work()
			return nil
		})
	}
	return h
}

// ID returns the instance identifier. The memory tier is named with it.
func (h *Hydra[K, V]) ID() string {
	return h.id
}

// Store returns the durable tier evictions are demoted to.
func (h *Hydra[K, V]) Store() Store[K, V] {
	return h.store
}

func (h *Hydra[K, V]) Set(key K, value V) { h.memory.Set(key, value) }
func (h *Hydra[K, V]) SetWithCost(key K, value V, cost int) {
	h.memory.SetWithCost(key, value, cost)
}
func (h *Hydra[K, V]) Get(key K) (V, bool) { return h.memory.Get(key) }
func (h *Hydra[K, V]) Remove(key K) bool { return h.memory.Remove(key) }
func (h *Hydra[K, V]) RemoveAll() { h.memory.RemoveAll() }
func (h *Hydra[K, V]) Len() int { return h.memory.Len() }
func (h *Hydra[K, V]) Contains(key K) bool { return h.memory.Contains(key) }

func (h *Hydra[K, V]) onEvict(ev Eviction[K, V]) {
	if ev.Source != h.id {
		h.mismatched.Add(1)
		h.logger.Warn("ignoring eviction from foreign cache %s", ev.Source)
		return
	}
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		h.drop(ev.Key, "closed")
		return
	}
	select {
	case h.queue <- demotion[K, V]{key: ev.Key, value: ev.Value}:
		h.pending++
		h.metrics.queued(len(h.queue))
		h.mutex.Unlock()
	default:
		h.mutex.Unlock()
		h.drop(ev.Key, "queue full")
	}
}

func (h *Hydra[K, V]) drop(key K, reason string) {
	h.dropped.Add(1)
	h.metrics.demotion(DemotionDropped)
	h.logger.Warn("dropped demotion of %v: %s", key, reason)
}

func (h *Hydra[K, V]) work() {
	for d := range h.queue {
		h.demote(d)
		h.settle()
	}
}

func (h *Hydra[K, V]) demote(d demotion[K, V]) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	write := func(ctx context.Context) error {
		return h.store.Set(ctx, d.key, d.value)
	}
	var err error
	if h.breaker != nil {
		err = h.breaker.Execute(ctx, write)
	} else {
		err = write(ctx)
	}
	switch {
	case err == nil:
		h.demoted.Add(1)
		h.metrics.demotion(DemotionOK)
		h.logger.Trace("demoted %v", d.key)
	case errors.Is(err, resilience.ErrCircuitBreakerOpen):
		h.rejected.Add(1)
		h.metrics.demotion(DemotionRejected)
		h.logger.Warn("demotion of %v rejected: %s", d.key, err)
	default:
		h.failed.Add(1)
		h.metrics.demotion(DemotionFailed)
		h.logger.Error("demotion of %v failed: %s", d.key, err)
	}
}

func (h *Hydra[K, V]) settle() {
	h.mutex.Lock()
	h.pending--
	h.metrics.queued(len(h.queue))
	var waiters []chan struct{}
	if h.pending == 0 {
		waiters = h.waiters
		h.waiters = nil
	}
	h.mutex.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Flush blocks until every demotion queued so far has been written or has
// failed, or ctx is done. It returns ErrClosed after Close.
func (h *Hydra[K, V]) Flush(ctx context.Context) error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return ErrClosed
	}
	if h.pending == 0 {
		h.mutex.Unlock()
		return nil
	}
	ch := make(chan struct{})
	h.waiters = append(h.waiters, ch)
	h.mutex.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting demotions, drains the queue and waits for the
// workers. The memory tier stays usable; later evictions are dropped. It is
// safe to call more than once.
func (h *Hydra[K, V]) Close() error {
	h.once.Do(func() {
		h.mutex.Lock()
		h.closed = true
		close(h.queue)
		h.mutex.Unlock()
		h.group.Wait()
		h.logger.Debug("closed with %d demoted, %d failed, %d dropped", h.demoted.Load(), h.failed.Load(), h.dropped.Load())
	})
	return nil
}

// Stats returns a snapshot of the Hydra counters.
func (h *Hydra[K, V]) Stats() HydraStats {
	h.mutex.Lock()
	pending := h.pending
	h.mutex.Unlock()
	return HydraStats{
		Stats:      h.memory.Stats(),
		Demoted:    h.demoted.Load(),
		Failed:     h.failed.Load(),
		Dropped:    h.dropped.Load(),
		Rejected:   h.rejected.Load(),
		Mismatched: h.mismatched.Load(),
		Pending:    pending,
	}
}
