// Package config loads and persists memsearch settings. Configuration is
// TOML and layered: built-in defaults, then the user file at
// ~/.memsearch/config.toml, then the project file .memsearch.toml in the
// working directory. CLI flags override on top of the loaded result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/memsearch/memsearch/internal/embed"
)

// File names for the two config layers.
const (
	UserConfigDir   = ".memsearch"
	UserConfigFile  = "config.toml"
	ProjectFileName = ".memsearch.toml"
)

// Config is the full memsearch configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Watch     WatchConfig     `toml:"watch"`
	Compact   CompactConfig   `toml:"compact"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// URI is a filesystem path for the local store or an http(s) endpoint
	// for Qdrant.
	URI        string `toml:"uri"`
	Collection string `toml:"collection"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `toml:"provider"`
	// Model is empty for the provider's default model.
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
}

// ChunkingConfig tunes the markdown chunker.
type ChunkingConfig struct {
	MaxChunkSize int `toml:"max_chunk_size"`
	OverlapLines int `toml:"overlap_lines"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	DebounceMs int `toml:"debounce_ms"`
}

// CompactConfig selects the summarization backend for memory flushes.
type CompactConfig struct {
	LLMProvider string `toml:"llm_provider"`
	LLMModel    string `toml:"llm_model"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			URI:        filepath.Join("~", UserConfigDir, "index.db"),
			Collection: "memsearch_chunks",
		},
		Embedding: EmbeddingConfig{
			Provider: string(embed.ProviderOpenAI),
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: 1500,
			OverlapLines: 2,
		},
		Watch: WatchConfig{
			DebounceMs: 1500,
		},
		Compact: CompactConfig{
			LLMProvider: "ollama",
			LLMModel:    "llama3.2",
		},
	}
}

// UserConfigPath returns ~/.memsearch/config.toml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile), nil
}

// ProjectConfigPath returns .memsearch.toml in the working directory.
func ProjectConfigPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return filepath.Join(wd, ProjectFileName), nil
}

// Load builds the layered configuration. Missing files are fine; malformed
// files are not.
func Load() (Config, error) {
	cfg := Default()

	userPath, err := UserConfigPath()
	if err == nil {
		if err := mergeFile(&cfg, userPath); err != nil {
			return Config{}, err
		}
	}

	projectPath, err := ProjectConfigPath()
	if err == nil {
		if err := mergeFile(&cfg, projectPath); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// LoadFiles layers the given files over the defaults, in order. Used by
// tests and by callers that manage paths themselves.
func LoadFiles(paths ...string) (Config, error) {
	cfg := Default()
	for _, path := range paths {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	// Unmarshal overlays only the keys present in the file.
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Save writes the config as TOML, creating parent directories as needed.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Get returns the value of a dotted key like "embedding.provider".
func (c *Config) Get(key string) (string, error) {
	field, err := c.field(key)
	if err != nil {
		return "", err
	}
	switch v := field.(type) {
	case *string:
		return *v, nil
	case *int:
		return strconv.Itoa(*v), nil
	default:
		return "", fmt.Errorf("unsupported config field %s", key)
	}
}

// Set assigns a dotted key from its string representation. Integer fields
// are parsed; the embedding provider is validated against the known
// provider names.
func (c *Config) Set(key, value string) error {
	if key == "embedding.provider" && !embed.IsValidProvider(value) {
		return fmt.Errorf("unknown embedding provider %q (valid: %s)",
			value, strings.Join(embed.ValidProviders(), ", "))
	}

	field, err := c.field(key)
	if err != nil {
		return err
	}
	switch v := field.(type) {
	case *string:
		*v = value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config key %s needs an integer, got %q", key, value)
		}
		*v = n
	default:
		return fmt.Errorf("unsupported config field %s", key)
	}
	return nil
}

// field maps a dotted key to a pointer at the underlying struct field.
func (c *Config) field(key string) (any, error) {
	fields := map[string]any{
		"store.uri":               &c.Store.URI,
		"store.collection":        &c.Store.Collection,
		"embedding.provider":      &c.Embedding.Provider,
		"embedding.model":         &c.Embedding.Model,
		"embedding.batch_size":    &c.Embedding.BatchSize,
		"chunking.max_chunk_size": &c.Chunking.MaxChunkSize,
		"chunking.overlap_lines":  &c.Chunking.OverlapLines,
		"watch.debounce_ms":       &c.Watch.DebounceMs,
		"compact.llm_provider":    &c.Compact.LLMProvider,
		"compact.llm_model":       &c.Compact.LLMModel,
	}
	field, ok := fields[key]
	if !ok {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(keys, ", "))
	}
	return field, nil
}

// Keys returns every settable dotted key, sorted.
func (c *Config) Keys() []string {
	keys := []string{
		"store.uri",
		"store.collection",
		"embedding.provider",
		"embedding.model",
		"chunking.max_chunk_size",
		"chunking.overlap_lines",
		"embedding.batch_size",
		"watch.debounce_ms",
		"compact.llm_provider",
		"compact.llm_model",
	}
	sort.Strings(keys)
	return keys
}

// ExpandedStoreURI resolves a leading ~ in the store URI.
func (c Config) ExpandedStoreURI() string {
	uri := c.Store.URI
	if strings.HasPrefix(uri, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(uri, "~"))
		}
	}
	return uri
}
