package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]KeyValue {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "nested", "state.db"))
	require.NoError(t, err)

	stores := map[string]KeyValue{
		BackendYAML:   NewYAMLStore(filepath.Join(dir, "nested", "state.yaml")),
		BackendSQLite: sqliteStore,
	}
	t.Cleanup(func() {
		for _, store := range stores {
			_ = store.Close()
		}
	})
	return stores
}

func TestLoadMissingKey(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			record, ok, err := store.Load("customPattern")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, record)
		})
	}
}

func TestSaveLoadDelete(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("customPattern", Record{
				"inhaleSeconds":     3.0,
				"inhaleHoldSeconds": 0.0,
				"exhaleSeconds":     1.5,
				"exhaleHoldSeconds": 0.0,
			}))

			record, ok, err := store.Load("customPattern")
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, record, 4)
			assert.InDelta(t, 3.0, cast.ToFloat64(record["inhaleSeconds"]), 1e-9)
			assert.InDelta(t, 1.5, cast.ToFloat64(record["exhaleSeconds"]), 1e-9)

			require.NoError(t, store.Save("customPattern", Record{"inhaleSeconds": 2}))
			record, ok, err = store.Load("customPattern")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Len(t, record, 1)

			require.NoError(t, store.Delete("customPattern"))
			require.NoError(t, store.Delete("customPattern"))
			_, ok, err = store.Load("customPattern")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("a", Record{"mode": "deep_focus"}))
			require.NoError(t, store.Save("b", Record{"mode": "casual_work"}))
			require.NoError(t, store.Delete("a"))

			record, ok, err := store.Load("b")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "casual_work", cast.ToString(record["mode"]))
		})
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			_, _, err := store.Load("a")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, store.Save("a", Record{}), ErrClosed)
			assert.ErrorIs(t, store.Delete("a"), ErrClosed)
		})
	}
}

func TestYAMLStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	first := NewYAMLStore(path)
	require.NoError(t, first.Save("customPattern", Record{"inhaleSeconds": 4.25}))
	require.NoError(t, first.Close())

	second := NewYAMLStore(path)
	record, ok, err := second.Load("customPattern")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4.25, cast.ToFloat64(record["inhaleSeconds"]), 1e-9)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Save("customPattern", Record{"exhaleSeconds": 6}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()
	record, ok, err := second.Load("customPattern")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "6", record["exhaleSeconds"])
}

func TestYAMLStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("customPattern: [unterminated"), 0o644))

	_, _, err := NewYAMLStore(path).Load("customPattern")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(BackendYAML, "", dir)
	require.NoError(t, err)
	yamlStore, ok := store.(*YAMLStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "state.yaml"), yamlStore.Path())

	store, err = Open(BackendSQLite, "", dir)
	require.NoError(t, err)
	defer store.Close()
	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "state.db"), sqliteStore.Path())

	_, err = Open("etcd", "", dir)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
