// Package config loads and validates contentdex configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete contentdex configuration.
type Config struct {
	Repo    RepoConfig    `yaml:"repo"`
	Index   IndexConfig   `yaml:"index"`
	Watcher WatcherConfig `yaml:"watcher"`
	Logging LoggingConfig `yaml:"logging"`
}

// RepoConfig describes the backing content repository.
type RepoConfig struct {
	// Path is the repository root; the index and the content registry
	// live under it.
	Path string `yaml:"path"`

	// Versioned enables version-chain semantics: every index of an
	// existing uid creates a new engine document.
	Versioned bool `yaml:"versioned"`

	// InPlace means the store keeps original files where they are, so
	// converted source files are never reclaimed after indexing.
	InPlace bool `yaml:"inplace"`
}

// IndexConfig configures the index engine and the background worker.
type IndexConfig struct {
	// Language is the analyzer language hint for free-text fields.
	Language string `yaml:"language"`

	// ChunkSize is the byte size of full-text chunks appended from
	// converted content.
	ChunkSize int `yaml:"chunk_size"`

	// DequeueInterval is how long the worker waits on an empty queue
	// before re-checking the running flag. It bounds shutdown latency,
	// not processing latency.
	DequeueInterval time.Duration `yaml:"dequeue_interval"`

	// QueryCacheSize is the number of parsed text queries kept in the
	// translator's LRU cache.
	QueryCacheSize int `yaml:"query_cache_size"`
}

// WatcherConfig configures the optional filesystem watcher.
type WatcherConfig struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in defaults. A zero-value YAML file produces
// exactly this configuration.
func Default() *Config {
	return &Config{
		Repo: RepoConfig{
			Path:    ".contentdex",
			InPlace: true,
		},
		Index: IndexConfig{
			Language:        "en",
			ChunkSize:       2048,
			DequeueInterval: 25 * time.Millisecond,
			QueryCacheSize:  256,
		},
		Watcher: WatcherConfig{
			DebounceWindow: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering it over the defaults and
// then applying CONTENTDEX_* environment overrides. A missing file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Env vars win over
// both defaults and the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CONTENTDEX_REPO"); v != "" {
		cfg.Repo.Path = v
	}
	if v := os.Getenv("CONTENTDEX_LANGUAGE"); v != "" {
		cfg.Index.Language = v
	}
	if v := os.Getenv("CONTENTDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONTENTDEX_VERSIONED"); v != "" {
		cfg.Repo.Versioned = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Repo.Path == "" {
		return fmt.Errorf("repo.path must not be empty")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.DequeueInterval <= 0 {
		return fmt.Errorf("index.dequeue_interval must be positive, got %s", c.Index.DequeueInterval)
	}
	if c.Index.QueryCacheSize <= 0 {
		return fmt.Errorf("index.query_cache_size must be positive, got %d", c.Index.QueryCacheSize)
	}
	return nil
}

// IndexPath returns the location of the engine index under the repo root.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Repo.Path, "index.bleve")
}

// RegistryPath returns the location of the content registry database.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Repo.Path, "registry.db")
}

// Capabilities returns the capability flags the backing store advertises.
func (c *Config) Capabilities() []string {
	var caps []string
	if c.Repo.Versioned {
		caps = append(caps, "versions")
	}
	if c.Repo.InPlace {
		caps = append(caps, "inplace")
	}
	return caps
}
