package cache

import (
	"time"

	"github.com/agentuity/go-cachew/logger"
	"github.com/agentuity/go-cachew/resilience"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultQueueSize is the number of demotions a Hydra buffers before it
// starts dropping them.
const DefaultQueueSize = 1024

// DefaultWorkers is the number of goroutines draining the demotion queue.
const DefaultWorkers = 1

// DefaultDemoteTimeout bounds a single write to the durable tier.
const DefaultDemoteTimeout = 5 * time.Second

// Metric labels used for caches that were not given a name.
const (
	DefaultMetricsLabel = "default"
	HydraMetricsLabel   = "hydra"
)

// DefaultService is the keychain service namespace used by Vault.
const DefaultService = "cachew"

// config holds the resolved configuration shared by every tier. Each
// constructor reads only the fields that apply to it.
type config struct {
	name          string
	label         string
	costLimit     int
	logger        logger.Logger
	registerer    prometheus.Registerer
	root          string
	fs            billy.Filesystem
	hasher        KeyHasher
	service       string
	queueSize     int
	workers       int
	demoteTimeout time.Duration
	breaker       *resilience.CircuitBreakerConfig
}

// Option configures a cache tier.
type Option func(*config)

func defaultConfig() config {
	return config{
		hasher:        HashKey,
		service:       DefaultService,
		queueSize:     DefaultQueueSize,
		workers:       DefaultWorkers,
		demoteTimeout: DefaultDemoteTimeout,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger(logger.GetLevelFromEnv())
	}
	if cfg.demoteTimeout <= 0 {
		cfg.demoteTimeout = DefaultDemoteTimeout
	}
	return cfg
}

// WithName names a cache. A BoundedCache reports the name as the Source of
// its eviction events and defaults to a random UUID. The name is also the
// "cache" metric label; unnamed caches share the "default" label, and
// unnamed Hydras the "hydra" label, so give every cache on a shared
// registerer its own name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

func withMetricsLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// WithCostLimit enables cost tracking. Entries are evicted until the total
// cost is at or below limit. Zero disables the limit.
func WithCostLimit(limit int) Option {
	return func(c *config) { c.costLimit = limit }
}

// WithLogger sets the logger used to report demotion drops, failures and
// directory problems.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRegisterer enables Prometheus metrics on the given registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithRoot sets the root directory a Silo resolves its directory under.
func WithRoot(path string) Option {
	return func(c *config) { c.root = path }
}

// WithFilesystem makes a Silo use fs instead of the local disk. The Silo
// directory is created relative to the root of fs.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(c *config) { c.fs = fs }
}

// WithKeyHasher replaces the function a Silo uses to name files.
func WithKeyHasher(h KeyHasher) Option {
	return func(c *config) { c.hasher = h }
}

// WithService sets the keychain service namespace used by a Vault.
func WithService(service string) Option {
	return func(c *config) { c.service = service }
}

// WithQueueSize sets the capacity of the Hydra demotion queue.
func WithQueueSize(n int) Option {
	return func(c *config) { c.queueSize = n }
}

// WithWorkers sets the number of Hydra demotion workers.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithDemoteTimeout bounds each write to the durable tier made by a Hydra.
// A zero or negative value selects DefaultDemoteTimeout.
func WithDemoteTimeout(d time.Duration) Option {
	return func(c *config) { c.demoteTimeout = d }
}

// WithBreaker guards Hydra demotions with a circuit breaker. While the
// breaker is open demotions are rejected without touching the durable tier.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *config) { c.breaker = &cfg }
}
