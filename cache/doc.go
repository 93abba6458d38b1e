// Package cache provides a capacity-bounded cache in three tiers and a
// hybrid cache that spills memory evictions to disk.
//
// # Tiers
//
//   - [Stash]: volatile memory tier. A [BoundedCache] with no eviction
//     handler; evicted entries are discarded. Lost on process exit.
//
//   - [Silo]: durable tier. One file per key under a directory of the user
//     cache dir (or the temp dir), named by the xxhash64 of the key. Writes go
//     to a temp file that is renamed over the target, so a reader never sees
//     a partial value. The filesystem is a go-billy [billy.Filesystem], which
//     makes it possible to run a Silo in memory for tests.
//
//   - [Vault]: secure tier. Each value is a record in a
//     [keychain.Keychain]. Use [keychain.NewEncrypted] to seal payloads
//     before they reach the backend.
//
//   - [Hydra]: a [BoundedCache] whose evictions are queued and written to a
//     durable [Store] (a Silo by default) by background workers. Reads are
//     served from memory only; a memory miss is a miss.
//
// Memory tiers implement [Tier] and never fail. Durable and secure tiers
// implement [Store]; a missing key is a miss, not an error, and removing a
// missing key succeeds.
//
// # Eviction
//
// [BoundedCache] evicts in exact LRU order. Both Get and Set make a key the
// most recently used. When a cost limit is set, entries are evicted until
// both the count and the total cost fit. The entry being written is never
// evicted by its own Set, so an entry costing more than the limit stays
// until the next write.
//
// Eviction handlers are called after the cache lock is released, in LRU
// order, before Set returns. A handler may call back into the cache.
//
// # Demotion
//
// A Hydra never blocks a Set on disk I/O. Evicted entries are pushed onto a
// bounded queue without blocking; when the queue is full the demotion is
// dropped and counted. Each write to the durable tier is bounded by
// [WithDemoteTimeout] and may be guarded by a circuit breaker
// ([WithBreaker]). Failed demotions are logged and counted, never retried.
// Call [Hydra.Flush] to wait for queued demotions and [Hydra.Close] to stop
// the workers.
//
// # Errors
//
// Encode and decode failures wrap [ErrEncodeFailed] and
// [ErrDecodeFailed]. Corrupt stored bytes are always reported, never turned
// into a miss. A Silo that cannot enumerate its directory returns
// [ErrDirectoryUnavailable] from Size. A Vault returns a [*StatusError] for
// keychain statuses it does not handle. Test with errors.Is and errors.As.
//
// # Cache-aside
//
// [Exec] and [ExecStore] combine lookup and population:
//
//	user, found, err := cache.ExecStore(ctx, silo, "user:123",
//	    func(ctx context.Context) (User, bool, error) {
//	        user, err := queries.GetUser(ctx, id)
//	        if errors.Is(err, sql.ErrNoRows) {
//	            return User{}, false, nil   // not found, won't be cached
//	        }
//	        return user, true, err
//	    },
//	)
//
// # Metrics
//
// Pass [WithRegisterer] to export Prometheus counters for hits, misses,
// evictions and demotions (by result), and a gauge of the demotion queue
// depth. Every series carries a "cache" label with the cache name.
package cache
