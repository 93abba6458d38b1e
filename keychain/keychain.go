package keychain

import (
	"context"
	"fmt"
	"time"

	"github.com/agentuity/go-cachew/logger"
)

// Status is the outcome of a keychain call. Backends report failures as a
// status rather than an error, mirroring platform keystores.
type Status int

const (
	StatusSuccess Status = iota
	StatusItemNotFound
	StatusDuplicateItem
	StatusInvalidQuery
	StatusUnavailable
	StatusAuthFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusItemNotFound:
		return "item not found"
	case StatusDuplicateItem:
		return "duplicate item"
	case StatusInvalidQuery:
		return "invalid query"
	case StatusUnavailable:
		return "backend unavailable"
	case StatusAuthFailed:
		return "authentication failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Query describes a single keychain record. Service and Account together
// identify the record; Data carries the payload on Add.
type Query struct {
	Service string
	Account string
	Data    []byte
}

func (q Query) valid() bool {
	return q.Account != ""
}

// Keychain is the keystore contract used by the secure cache tier.
//
// Contract:
// - Add fails with StatusDuplicateItem if the record already exists.
// - Find returns StatusItemNotFound for a missing record.
// - Delete returns StatusItemNotFound for a missing record.
// - Implementations must be safe for concurrent use.
type Keychain interface {
	Add(ctx context.Context, q Query) Status
	Find(ctx context.Context, q Query) ([]byte, Status)
	Delete(ctx context.Context, q Query) Status
}

// DefaultQueryTimeout is the per-operation timeout for backends that
// perform I/O (SQLite, Redis).
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	queryTimeout time.Duration
	prefix       string
	logger       logger.Logger
}

// Option configures a Keychain backend.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{queryTimeout: DefaultQueryTimeout, prefix: "keychain"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger()
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed keychains.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithPrefix sets the key prefix used by the Redis backend. Defaults to "keychain".
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithLogger sets the logger used to report backend failures.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}
