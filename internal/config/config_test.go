package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "memsearch_chunks", cfg.Store.Collection)
	assert.Equal(t, 1500, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 2, cfg.Chunking.OverlapLines)
	assert.Equal(t, 1500, cfg.Watch.DebounceMs)
}

func TestLoadFiles_LayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	user := writeTOML(t, dir, "user.toml", `
[embedding]
provider = "ollama"
model = "nomic-embed-text"
`)
	project := writeTOML(t, dir, "project.toml", `
[embedding]
provider = "static"

[chunking]
max_chunk_size = 800
`)

	cfg, err := LoadFiles(user, project)
	require.NoError(t, err)

	// Project overrides user; untouched user keys survive.
	assert.Equal(t, "static", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 800, cfg.Chunking.MaxChunkSize)
	// Untouched keys keep defaults.
	assert.Equal(t, 2, cfg.Chunking.OverlapLines)
	assert.Equal(t, 1500, cfg.Watch.DebounceMs)
}

func TestLoadFiles_MissingFileIsFine(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFiles_MalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	bad := writeTOML(t, dir, "bad.toml", "not [valid toml")

	_, err := LoadFiles(bad)
	require.Error(t, err)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "voyage"
	cfg.Watch.DebounceMs = 500

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("embedding.model", "voyage-3"))
	got, err := cfg.Get("embedding.model")
	require.NoError(t, err)
	assert.Equal(t, "voyage-3", got)

	require.NoError(t, cfg.Set("watch.debounce_ms", "250"))
	assert.Equal(t, 250, cfg.Watch.DebounceMs)

	got, err = cfg.Get("chunking.max_chunk_size")
	require.NoError(t, err)
	assert.Equal(t, "1500", got)
}

func TestConfig_SetRejectsBadInput(t *testing.T) {
	cfg := Default()

	err := cfg.Set("watch.debounce_ms", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer")

	err = cfg.Set("embedding.provider", "milvus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid:")

	err = cfg.Set("no.such.key", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")

	_, err = cfg.Get("store.nope")
	require.Error(t, err)
}

func TestConfig_SetValidProvider(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("embedding.provider", "google"))
	assert.Equal(t, "google", cfg.Embedding.Provider)
}

func TestConfig_Keys(t *testing.T) {
	cfg := Default()
	keys := cfg.Keys()
	assert.Len(t, keys, 10)
	for _, key := range keys {
		_, err := cfg.Get(key)
		require.NoError(t, err, "key %s should be readable", key)
	}
}

func TestConfig_ExpandedStoreURI(t *testing.T) {
	cfg := Default()
	cfg.Store.URI = "~/notes/index.db"

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes", "index.db"), cfg.ExpandedStoreURI())

	cfg.Store.URI = "/absolute/index.db"
	assert.Equal(t, "/absolute/index.db", cfg.ExpandedStoreURI())
}
