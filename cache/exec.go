package cache

import "context"

// Invoker produces a value on a cache miss. The bool reports whether a value
// was found; return false to signal "not found" without caching a zero value
// (e.g. sql.ErrNoRows scenarios).
type Invoker[V any] func(ctx context.Context) (V, bool, error)

// Exec is a cache-aside helper for memory tiers. On a hit it returns the
// cached value. On a miss it calls invoke and caches the result if invoke
// reports found. Invoke errors are propagated and nothing is cached.
func Exec[K comparable, V any](ctx context.Context, tier Tier[K, V], key K, invoke Invoker[V]) (V, bool, error) {
	if val, ok := tier.Get(key); ok {
		return val, true, nil
	}
	result, found, err := invoke(ctx)
	if err != nil || !found {
		var zero V
		return zero, false, err
	}
	tier.Set(key, result)
	return result, true, nil
}

// ExecStore is Exec for durable and secure tiers. Read errors are propagated
// without calling invoke, so a failing store does not turn every lookup into
// a backend call. Write errors after a successful invoke are swallowed; the
// caller still gets the value.
func ExecStore[K comparable, V any](ctx context.Context, store Store[K, V], key K, invoke Invoker[V]) (V, bool, error) {
	var zero V
	val, ok, err := store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if ok {
		return val, true, nil
	}
	result, found, err := invoke(ctx)
	if err != nil || !found {
		return zero, false, err
	}
	_ = store.Set(ctx, key, result)
	return result, true, nil
}
