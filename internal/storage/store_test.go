package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories returns every backend that runs without external services.
func storeFactories(t *testing.T) map[string]func() BlobStore {
	return map[string]func() BlobStore{
		"file": func() BlobStore {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func() BlobStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "blobs.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func() BlobStore {
			s, err := NewBadgerStore(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
}

func TestBlobStores(t *testing.T) {
	ctx := context.Background()

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer func() { assert.NoError(t, s.Close()) }()

			_, err := s.Get(ctx, "missing.json")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "archetypes/A/cards.json", []byte(`{"deckTotal":1}`)))
			require.NoError(t, s.Put(ctx, "archetypes/B/cards.json", []byte(`{}`)))
			require.NoError(t, s.Put(ctx, "master.json", []byte(`{}`)))

			got, err := s.Get(ctx, "archetypes/A/cards.json")
			require.NoError(t, err)
			assert.Equal(t, `{"deckTotal":1}`, string(got))

			require.NoError(t, s.Put(ctx, "archetypes/A/cards.json", []byte(`{"deckTotal":2}`)))
			got, err = s.Get(ctx, "archetypes/A/cards.json")
			require.NoError(t, err)
			assert.Equal(t, `{"deckTotal":2}`, string(got))

			keys, err := s.List(ctx, "archetypes/")
			require.NoError(t, err)
			assert.Equal(t, []string{"archetypes/A/cards.json", "archetypes/B/cards.json"}, keys)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, s.Delete(ctx, "master.json"))
			assert.ErrorIs(t, s.Delete(ctx, "master.json"), ErrNotFound)

			assert.Error(t, s.Put(ctx, "../escape.json", []byte(`{}`)))
		})
	}
}

func TestJSONHelpersAndPrune(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, PutJSON(ctx, s, "x/a.json", payload{Name: "a", Count: 1}))
	require.NoError(t, PutJSON(ctx, s, "x/b.json", payload{Name: "b"}))
	require.NoError(t, PutJSON(ctx, s, "xy/c.json", payload{Name: "c"}))

	raw, err := s.Get(ctx, "x/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a","count":1}`, string(raw))

	var p payload
	require.NoError(t, GetJSON(ctx, s, "x/a.json", &p))
	assert.Equal(t, payload{Name: "a", Count: 1}, p)
	assert.ErrorIs(t, GetJSON(ctx, s, "x/none.json", &p), ErrNotFound)

	n, err := Prune(ctx, s, "x/", map[string]struct{}{"x/a.json": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/a.json", "xy/c.json"}, keys)
}

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	mgr, err := NewMigrationManager(path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, mgr.Close()) }()

	require.NoError(t, mgr.Up())
	version, dirty, err := mgr.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, mgr.Up(), "second Up is a no-op")
	require.NoError(t, mgr.Down())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Options{Backend: "s3"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendGCS})
	assert.Error(t, err, "bucket required")

	_, err = OpenDB(DefaultConfig(":memory:"))
	assert.Error(t, err)
}

func TestGCSKeys(t *testing.T) {
	s := &GCSStore{bucket: "b", prefix: "reports"}
	assert.Equal(t, "reports/archetypes/A/cards.json", s.objectName("archetypes/A/cards.json"))
	assert.Equal(t, "archetypes/A/cards.json", s.keyFor("reports/archetypes/A/cards.json"))
	assert.Equal(t, "reports/include-exclude/A/", s.listPrefix("include-exclude/A/"))
	assert.Equal(t, "reports/", s.listPrefix(""))

	bare := &GCSStore{bucket: "b"}
	assert.Equal(t, "x/", bare.listPrefix("x/"))
	assert.Equal(t, "master.json", bare.keyFor("master.json"))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a/b/c.json", JoinKey("a/", "", "/b", "c.json"))
}
