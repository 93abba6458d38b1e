package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "medium", cfg.Hydra.Size)
	assert.Equal(t, 1024, cfg.Hydra.QueueSize)
	assert.Equal(t, Duration(5*time.Second), cfg.Hydra.DemoteTimeout)
}

func TestParse(t *testing.T) {
	t.Setenv("CACHEW_TEST_KEY", "00112233")
	cfg, err := Parse([]byte(`
log_level: debug
silo:
  root: ${CACHEW_TEST_ROOT:-/var/cache/cachew}
  name: images
  codec: json
hydra:
  size: "500"
  workers: 4
  demote_timeout: 1d
  breaker_failures: 3
  breaker_cooldown: 30s
vault:
  backend: sqlite
  sqlite_path: /tmp/vault.db
  key: ${CACHEW_TEST_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Silo{Root: "/var/cache/cachew", Name: "images", Codec: "json"}, cfg.Silo)
	assert.Equal(t, "500", cfg.Hydra.Size)
	assert.Equal(t, 4, cfg.Hydra.Workers)
	assert.Equal(t, 1024, cfg.Hydra.QueueSize, "unset fields keep their defaults")
	assert.Equal(t, Duration(24*time.Hour), cfg.Hydra.DemoteTimeout)
	assert.Equal(t, Duration(30*time.Second), cfg.Hydra.BreakerCooldown)
	assert.Equal(t, "sqlite", cfg.Vault.Backend)
	assert.Equal(t, "cachew", cfg.Vault.Service)
	assert.Equal(t, "00112233", cfg.Vault.Key)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("silo:\n  nmae: typo\n"))
	assert.Error(t, err)
}

func TestParseBadDuration(t *testing.T) {
	_, err := Parse([]byte("hydra:\n  demote_timeout: soon\n"))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"log level":     func(c *Config) { c.LogLevel = "chatty" },
		"codec":         func(c *Config) { c.Silo.Codec = "gob" },
		"silo name":     func(c *Config) { c.Silo.Name = "a/b" },
		"empty silo":    func(c *Config) { c.Silo.Name = "" },
		"size":          func(c *Config) { c.Hydra.Size = "0" },
		"cost limit":    func(c *Config) { c.Hydra.CostLimit = -1 },
		"queue":         func(c *Config) { c.Hydra.QueueSize = 0 },
		"workers":       func(c *Config) { c.Hydra.Workers = 0 },
		"timeout":       func(c *Config) { c.Hydra.DemoteTimeout = 0 },
		"breaker":       func(c *Config) { c.Hydra.BreakerFailures = -2 },
		"backend":       func(c *Config) { c.Vault.Backend = "etcd" },
		"redis url":     func(c *Config) { c.Vault.Backend = "redis" },
		"sqlite path":   func(c *Config) { c.Vault.Backend = "sqlite" },
		"vault service": func(c *Config) { c.Vault.Service = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadAndSave(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "cachew.yaml")
	_, err := Load(fn)
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.ErrorContains(t, err, "load "+fn)

	cfg := Default()
	cfg.Hydra.DemoteTimeout = Duration(36 * time.Hour)
	cfg.Vault.Backend = "redis"
	cfg.Vault.RedisURL = "redis://localhost:6379/0"
	require.NoError(t, cfg.Save(fn))

	buf, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "demote_timeout: 1d12h")

	loaded, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
