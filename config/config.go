package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/agentuity/go-cachew/cache"
	"github.com/agentuity/go-cachew/env"
	"github.com/agentuity/go-cachew/logger"
	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

// Duration is a time.Duration that reads and writes go-str2duration
// strings such as "90s", "1h30m" or "1d".
type Duration time.Duration

func (d Duration) String() string {
	return str2duration.String(time.Duration(d))
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := str2duration.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type Silo struct {
	Root  string `yaml:"root,omitempty"`
	Name  string `yaml:"name"`
	Codec string `yaml:"codec"`
}

// Hydra configures the hybrid cache. BreakerFailures opens the demotion
// circuit breaker after that many consecutive failures; zero leaves the
// breaker off.
type Hydra struct {
	Size            string   `yaml:"size"`
	CostLimit       int      `yaml:"cost_limit,omitempty"`
	QueueSize       int      `yaml:"queue_size"`
	Workers         int      `yaml:"workers"`
	DemoteTimeout   Duration `yaml:"demote_timeout"`
	BreakerFailures int      `yaml:"breaker_failures,omitempty"`
	BreakerCooldown Duration `yaml:"breaker_cooldown,omitempty"`
}

// Vault configures the keychain behind the secure tier. Key is a hex or
// base64 AES-256 key; when set, payloads are sealed before they reach the
// backend.
type Vault struct {
	Backend    string `yaml:"backend"`
	Service    string `yaml:"service"`
	RedisURL   string `yaml:"redis_url,omitempty"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
	Key        string `yaml:"key,omitempty"`
}

// Config is the cachew CLI configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Silo     Silo   `yaml:"silo"`
	Hydra    Hydra  `yaml:"hydra"`
	Vault    Vault  `yaml:"vault"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Silo:     Silo{Name: "default", Codec: "msgpack"},
		Hydra: Hydra{
			Size:          cache.Medium.String(),
			QueueSize:     cache.DefaultQueueSize,
			Workers:       cache.DefaultWorkers,
			DemoteTimeout: Duration(cache.DefaultDemoteTimeout),
		},
		Vault: Vault{Backend: "memory", Service: cache.DefaultService},
	}
}

// Load reads a YAML config file on top of Default. References of the form
// ${NAME} or ${NAME:-default} are replaced from the environment first.
func Load(fn string) (*Config, error) {
	buf, err := os.ReadFile(fn)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.WithSecondaryError(errors.Wrapf(ErrConfigNotFound, "load %s", fn), err)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", fn)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config file: %s", fn)
	}
	return cfg, nil
}

// Parse decodes YAML config content on top of Default and validates it.
func Parse(buf []byte) (*Config, error) {
	cfg := Default()
	expanded := env.Interpolate(string(buf), os.LookupEnv)
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode YAML config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first problem with the configuration.
func (c *Config) Validate() error {
	if _, ok := logger.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return invalid("unknown log_level %q", c.LogLevel)
	}
	if _, ok := cache.CodecByName[any](c.Silo.Codec); !ok {
		return invalid("unknown silo.codec %q, expected msgpack or json", c.Silo.Codec)
	}
	if c.Silo.Name == "" || strings.ContainsAny(c.Silo.Name, `/\`) {
		return invalid("silo.name %q must be a single path element", c.Silo.Name)
	}
	if _, err := cache.ParseCacheSize(c.Hydra.Size); err != nil {
		return invalid("hydra.size: %s", err)
	}
	if c.Hydra.CostLimit < 0 {
		return invalid("hydra.cost_limit must not be negative")
	}
	if c.Hydra.QueueSize < 1 {
		return invalid("hydra.queue_size must be positive")
	}
	if c.Hydra.Workers < 1 {
		return invalid("hydra.workers must be positive")
	}
	if c.Hydra.DemoteTimeout <= 0 {
		return invalid("hydra.demote_timeout must be positive")
	}
	if c.Hydra.BreakerFailures < 0 {
		return invalid("hydra.breaker_failures must not be negative")
	}
	switch c.Vault.Backend {
	case "memory":
	case "redis":
		if c.Vault.RedisURL == "" {
			return invalid("vault.redis_url is required for the redis backend")
		}
	case "sqlite":
		if c.Vault.SQLitePath == "" {
			return invalid("vault.sqlite_path is required for the sqlite backend")
		}
	default:
		return invalid("unknown vault.backend %q, expected memory, redis or sqlite", c.Vault.Backend)
	}
	if c.Vault.Service == "" {
		return invalid("vault.service must not be empty")
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// Save writes the configuration as YAML.
func (c *Config) Save(fn string) error {
	var buf bytes.Buffer
	buf.WriteString("# cachew configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(fn, buf.Bytes(), 0o644)
}
