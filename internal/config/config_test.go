package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 14*24*time.Hour, cfg.SourceWindow())
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 4, cfg.Engine.MinArchetypeDecks)
	assert.Equal(t, "drop", cfg.Engine.NoOpPolicy)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFrom_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `
[engine]
top_n = 5
noop_policy = "base"

[store]
backend = "badger"
path = "/tmp/ciphermaniac-badger"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.TopN)
	assert.Equal(t, "base", cfg.Engine.NoOpPolicy)
	assert.Equal(t, 3, cfg.Engine.MaxCountFilters, "unset keys keep defaults")
	assert.Equal(t, "badger", cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad policy", func(c *Config) { c.Engine.NoOpPolicy = "keep" }},
		{"zero top n", func(c *Config) { c.Engine.TopN = 0 }},
		{"usage above 100", func(c *Config) { c.Engine.MinUsagePercent = 101 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Store.Backend = "gcs" }},
		{"bad ttl", func(c *Config) { c.Cache.TTL = "soon" }},
		{"negative window", func(c *Config) { c.Source.Window = "-1h" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad url", func(c *Config) { c.Source.APIURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("gcs with bucket", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = StoreConfig{Backend: "gcs", Bucket: "reports"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Engine.Workers = 8
	cfg.Synonyms.Path = "/data/card-synonyms.json"

	require.NoError(t, cfg.SaveTo(path))
	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
