// Package config loads and validates the TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Source   SourceConfig   `toml:"source"`
	Store    StoreConfig    `toml:"store"`
	Synonyms SynonymsConfig `toml:"synonyms"`
	Cache    CacheConfig    `toml:"cache"`
	API      APIConfig      `toml:"api"`
	Log      LogConfig      `toml:"log"`
}

// EngineConfig bounds the filter space and the aggregation run.
type EngineConfig struct {
	MinUsagePercent   float64 `toml:"min_usage_percent" validate:"gte=0,lte=100"`
	// Cards used for include/exclude pairs
	TopN              int     `toml:"top_n" validate:"gte=1,lte=50"`
	// Exact-count includes per card
	MaxCountFilters   int     `toml:"max_count_filters" validate:"gte=1,lte=10"`
	// Smallest subset reported
	MinSubsetSize     int     `toml:"min_subset_size" validate:"gte=1"`
	// Archetypes below are skipped
	MinArchetypeDecks int     `toml:"min_archetype_decks" validate:"gte=1"`
	// Exclude-only combos matching every deck
	NoOpPolicy        string  `toml:"noop_policy" validate:"oneof=drop base"`
	// Archetypes built concurrently
	Workers           int     `toml:"workers" validate:"gte=1,lte=64"`
	// Delete artifacts of earlier runs
	PruneStale        bool    `toml:"prune_stale"`
}

// SourceConfig configures the Limitless deck source.
type SourceConfig struct {
	BaseURL     string `toml:"base_url" validate:"required,url"`
	APIURL      string `toml:"api_url" validate:"required,url"`
	APIKey      string `toml:"api_key"`
	// Look-back window, e.g. "336h"
	Window      string `toml:"window"`
	// Game format, e.g. "STANDARD"
	Format      string `toml:"format" validate:"required"`
	// Limitless game id
	Game        string `toml:"game" validate:"required"`
	// Minimum ms between requests
	RateLimitMs int    `toml:"rate_limit_ms" validate:"gte=0"`
	// Transport retries
	RetryMax    int    `toml:"retry_max" validate:"gte=0,lte=10"`
	// Per-request timeout
	Timeout     string `toml:"timeout"`
	PageSize    int    `toml:"page_size" validate:"gte=1,lte=500"`
}

// StoreConfig selects the artifact store.
type StoreConfig struct {
	Backend         string `toml:"backend" validate:"oneof=fs sqlite badger gcs"`
	Path            string `toml:"path" validate:"required_unless=Backend gcs"`
	Bucket          string `toml:"bucket" validate:"required_if=Backend gcs"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// SynonymsConfig points at the card synonyms file.
type SynonymsConfig struct {
	Path         string `toml:"path"`
	Watch        bool   `toml:"watch"`         // Reload on file changes
	PollInterval string `toml:"poll_interval"` // Backstop reload interval, "0s" disables
}

// CacheConfig contains report cache settings.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	// Entry lifetime (e.g., "15m")
	TTL     string `toml:"ttl"`
	// Max entries (0 = unlimited)
	MaxSize int    `toml:"max_size" validate:"gte=0"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port           int      `toml:"port" validate:"gte=1,lte=65535"`
	RequestTimeout string   `toml:"request_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `toml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MinUsagePercent:   0,
			TopN:              10,
			MaxCountFilters:   3,
			MinSubsetSize:     2,
			MinArchetypeDecks: 4,
			NoOpPolicy:        "drop",
			Workers:           4,
			PruneStale:        true,
		},
		Source: SourceConfig{
			BaseURL:     "https://limitlesstcg.com",
			APIURL:      "https://play.limitlesstcg.com/api",
			Window:      "336h",
			Format:      "STANDARD",
			Game:        "PTCG",
			RateLimitMs: 500,
			RetryMax:    3,
			Timeout:     "30s",
			PageSize:    50,
		},
		Store: StoreConfig{
			Backend: "fs",
			Path:    "reports",
		},
		Synonyms: SynonymsConfig{
			Path:         "",
			Watch:        true,
			PollInterval: "5m",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "15m",
			MaxSize: 1000,
		},
		API: APIConfig{
			Port:           8080,
			RequestTimeout: "30s",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// DefaultPath returns ~/.ciphermaniac/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ciphermaniac", "config.toml"), nil
}

// Load loads the configuration from the default path. Returns the default
// config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration at path over the defaults, so a file
// only needs the keys it changes. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

var validate = validator.New()

// Validate checks struct constraints and duration strings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	durations := map[string]string{
		"source.window":          c.Source.Window,
		"source.timeout":         c.Source.Timeout,
		"synonyms.poll_interval": c.Synonyms.PollInterval,
		"cache.ttl":              c.Cache.TTL,
		"api.request_timeout":    c.API.RequestTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", key, value)
		}
	}
	return nil
}

func parseOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || value == "" {
		return fallback
	}
	return d
}

// SourceWindow returns the ingestion look-back window.
func (c *Config) SourceWindow() time.Duration {
	return parseOr(c.Source.Window, 14*24*time.Hour)
}

// SourceTimeout returns the per-request timeout of the deck source.
func (c *Config) SourceTimeout() time.Duration {
	return parseOr(c.Source.Timeout, 30*time.Second)
}

// SynonymsPollInterval returns the backstop reload interval.
func (c *Config) SynonymsPollInterval() time.Duration {
	return parseOr(c.Synonyms.PollInterval, 0)
}

// CacheTTL returns the report cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return parseOr(c.Cache.TTL, 15*time.Minute)
}

// RequestTimeout returns the HTTP request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return parseOr(c.API.RequestTimeout, 30*time.Second)
}
