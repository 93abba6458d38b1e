package cache

import "context"

// Store is the contract of a durable or secure tier. A missing key is a
// miss (found == false, err == nil), never an error. Remove of a missing key
// succeeds.
type Store[K comparable, V any] interface {
	Set(ctx context.Context, key K, value V) error
	Get(ctx context.Context, key K) (V, bool, error)
	Remove(ctx context.Context, key K) error
}

// Tier is the contract of an in-memory tier. Memory tiers have no error
// channel.
type Tier[K comparable, V any] interface {
	Set(key K, value V)
	Get(key K) (V, bool)
	Remove(key K) bool
}

var (
	_ Tier[string, int] = (*Stash[string, int])(nil)
	_ Tier[string, int] = (*Hydra[string, int])(nil)
	_ Tier[string, int] = (*BoundedCache[string, int])(nil)

	_ Store[string, int] = (*Silo[string, int])(nil)
	_ Store[string, int] = (*Vault[string, int])(nil)
)
