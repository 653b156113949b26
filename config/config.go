// Package config loads archivist settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for a config file when none is given.
const DefaultConfigPath = "~/.config/archivist/config.yaml"

// Config holds all archivist configuration.
type Config struct {
	Database Database `yaml:"database"`
	Dropbox  Dropbox  `yaml:"dropbox"`
	Logs     Logs     `yaml:"logs"`
	Pictures Pictures `yaml:"pictures"`
	Faces    Faces    `yaml:"faces"`
	Logging  Logging  `yaml:"logging"`
}

// Database describes the relational store.
type Database struct {
	// Driver is "mysql" or "sqlite".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// Path is the database file when Driver is "sqlite".
	Path string `yaml:"path"`

	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Dropbox holds remote store credentials and the picture root folder.
type Dropbox struct {
	Token          string        `yaml:"token"`
	Root           string        `yaml:"root"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Logs configures chat-log archive import.
type Logs struct {
	Dir string `yaml:"dir"`

	// AllowedParticipants lists the logon names an event may involve.
	// Events with any other participant are dropped.
	AllowedParticipants []string `yaml:"allowed_participants"`

	Dedupe bool `yaml:"dedupe"`
}

// Pictures configures picture classification.
type Pictures struct {
	PoolSize   int           `yaml:"pool_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// RateLimit caps downloads per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	Dedupe bool `yaml:"dedupe"`

	// CheckpointDir holds listing cursors between incremental runs.
	CheckpointDir string `yaml:"checkpoint_dir"`

	// Incremental requires Dedupe: a run with failures stores its good
	// pictures but keeps the old cursor, so the next run lists them again.
	Incremental bool `yaml:"incremental"`
}

// Faces configures face registration and picture links.
type Faces struct {
	// Names maps person ids to display names.
	Names map[int]string `yaml:"names"`

	// LinksFile is a JSON object mapping picture paths to lists of names.
	LinksFile string `yaml:"links_file"`
}

// Logging configures process logging.
type Logging struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config at path, or returns defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(expanded)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "mariadb":
		if c.Database.Host == "" {
			return fmt.Errorf("%w: database.host is required for %s", ErrInvalidConfig, c.Database.Driver)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("%w: database.name is required for %s", ErrInvalidConfig, c.Database.Driver)
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("%w: database.port %d out of range", ErrInvalidConfig, c.Database.Port)
		}
	case "sqlite", "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Pictures.PoolSize <= 0 {
		return fmt.Errorf("%w: pictures.pool_size must be positive", ErrInvalidConfig)
	}
	if c.Pictures.MaxRetries < 1 {
		return fmt.Errorf("%w: pictures.max_retries must be at least 1", ErrInvalidConfig)
	}
	if c.Pictures.RetryDelay < 0 {
		return fmt.Errorf("%w: pictures.retry_delay must not be negative", ErrInvalidConfig)
	}
	if c.Pictures.RateLimit < 0 {
		return fmt.Errorf("%w: pictures.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Pictures.Incremental && c.Pictures.CheckpointDir == "" {
		return fmt.Errorf("%w: pictures.checkpoint_dir is required for incremental runs", ErrInvalidConfig)
	}
	if c.Pictures.Incremental && !c.Pictures.Dedupe {
		return fmt.Errorf("%w: pictures.dedupe is required for incremental runs", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}

	return nil
}
