package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "/kamerabilder", cfg.Dropbox.Root)
	assert.Equal(t, time.Minute, cfg.Dropbox.RequestTimeout)
	assert.Equal(t, "data/logs", cfg.Logs.Dir)
	assert.Empty(t, cfg.Logs.AllowedParticipants)
	assert.False(t, cfg.Logs.Dedupe)
	assert.Equal(t, 8, cfg.Pictures.PoolSize)
	assert.Equal(t, 3, cfg.Pictures.MaxRetries)
	assert.Zero(t, cfg.Pictures.RateLimit)
	assert.False(t, cfg.Pictures.Dedupe)
	assert.False(t, cfg.Pictures.Incremental)
	assert.Empty(t, cfg.Faces.Names)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
database:
  driver: sqlite
  path: /var/lib/archivist/archive.db
dropbox:
  root: /Camera Uploads
  request_timeout: 45s
logs:
  dir: /srv/msn
  allowed_participants:
    - alice@hotmail.com
    - bob@hotmail.com
pictures:
  pool_size: 4
  retry_delay: 2s
  rate_limit: 2.5
  dedupe: true
faces:
  names:
    1: alice
    2: bob
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/archivist/archive.db", cfg.Database.Path)
	assert.Equal(t, "/Camera Uploads", cfg.Dropbox.Root)
	assert.Equal(t, 45*time.Second, cfg.Dropbox.RequestTimeout)
	assert.Equal(t, "/srv/msn", cfg.Logs.Dir)
	assert.Equal(t, []string{"alice@hotmail.com", "bob@hotmail.com"}, cfg.Logs.AllowedParticipants)
	assert.Equal(t, 4, cfg.Pictures.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Pictures.RetryDelay)
	assert.InDelta(t, 2.5, cfg.Pictures.RateLimit, 1e-9)
	assert.True(t, cfg.Pictures.Dedupe)
	assert.Equal(t, map[int]string{1: "alice", 2: "bob"}, cfg.Faces.Names)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.Pictures.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)

	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pictures:\n  retry_delay: soon\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/archive")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "archive"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"mysql without host", func(c *Config) { c.Database.Host = "" }},
		{"mysql without name", func(c *Config) { c.Database.Name = "" }},
		{"mysql bad port", func(c *Config) { c.Database.Port = 0 }},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite"; c.Database.Path = "" }},
		{"zero pool", func(c *Config) { c.Pictures.PoolSize = 0 }},
		{"zero retries", func(c *Config) { c.Pictures.MaxRetries = 0 }},
		{"negative delay", func(c *Config) { c.Pictures.RetryDelay = -time.Second }},
		{"negative rate", func(c *Config) { c.Pictures.RateLimit = -1 }},
		{"incremental without dir", func(c *Config) {
			c.Pictures.Incremental, c.Pictures.Dedupe = true, true
			c.Pictures.CheckpointDir = ""
		}},
		{"incremental without dedupe", func(c *Config) { c.Pictures.Incremental = true; c.Pictures.Dedupe = false }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
