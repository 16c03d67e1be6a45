package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("", 48*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	got, err = parseSince("24h", 48*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), got)

	got, err = parseSince("2026-03-01", 0, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseSince("-1h", 0, now)
	assert.Error(t, err)
	_, err = parseSince("last week", 0, now)
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	flags := &globalFlags{
		configPath: filepath.Join(t.TempDir(), "missing.toml"),
		storePath:  "/tmp/reports",
		backend:    "sqlite",
		logLevel:   "debug",
	}
	cfg, err := flags.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reports", cfg.Store.Path)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)

	flags.backend = "s3"
	_, err = flags.loadConfig()
	assert.Error(t, err)
}

func TestAggregate_FromInput(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "reports")

	var raws []decks.RawDeck
	for i := 0; i < 6; i++ {
		raw := decks.RawDeck{
			Player:       fmt.Sprintf("player %d", i),
			Archetype:    "Lost Box",
			TournamentID: "t1",
			Cards: []decks.RawCard{
				{Count: 4, Name: "Comfey", Set: "LOR", Number: "79"},
				{Count: 10 + i, Name: "Basic Grass Energy"},
			},
		}
		if i%2 == 0 {
			raw.Cards = append(raw.Cards, decks.RawCard{Count: 1, Name: "Radiant Greninja", Set: "ASR", Number: "46"})
		}
		raws = append(raws, raw)
	}
	// Dropped: no cards.
	raws = append(raws, decks.RawDeck{Player: "empty", Archetype: "Lost Box"})

	data, err := json.Marshal(raws)
	require.NoError(t, err)
	input := filepath.Join(dir, "decks.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))

	out, err := execute(t,
		"--config", filepath.Join(dir, "config.toml"),
		"--store", storeDir,
		"--log-level", "error",
		"aggregate", "--input", input, "--workers", "1")
	require.NoError(t, err, out)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.Counts.Decks)
	assert.Equal(t, 1, result.Counts.Processed)

	for _, key := range []string{
		pipeline.MasterKey, pipeline.CardIndexKey, pipeline.DecksKey, pipeline.ArchetypeIndexKey,
		pipeline.TournamentIndexKey, pipeline.TournamentReportKey("t1"), pipeline.SuggestionsKey,
	} {
		assert.FileExists(t, filepath.Join(storeDir, filepath.FromSlash(key)))
	}

	index, err := os.ReadFile(filepath.Join(storeDir, filepath.FromSlash(pipeline.ArchetypeIndexKey)))
	require.NoError(t, err)
	assert.JSONEq(t, `["Lost_Box"]`, string(index))
}

func TestSynonymsCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  \"Foo::AAA::001\": \"Foo::BBB::002\"\n"), 0o644))

	out, err := execute(t, "synonyms", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+":")

	_, err = execute(t, "synonyms", "check", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
