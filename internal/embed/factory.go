package embed

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOpenAI uses the OpenAI embeddings API (default).
	ProviderOpenAI ProviderType = "openai"

	// ProviderGoogle uses the Gemini API via the genai SDK.
	ProviderGoogle ProviderType = "google"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline, reduced quality).
	ProviderStatic ProviderType = "static"
)

// DefaultModels maps each provider to its default embedding model.
var DefaultModels = map[ProviderType]string{
	ProviderOpenAI: "text-embedding-3-small",
	ProviderGoogle: "gemini-embedding-001",
	ProviderVoyage: "voyage-3-lite",
	ProviderOllama: "nomic-embed-text",
	ProviderStatic: "static",
}

// Config selects and tunes an embedding provider.
type Config struct {
	Provider  string // one of ValidProviders()
	Model     string // empty means the provider default
	BatchSize int    // texts per API call, 0 means the provider default
	CacheSize int    // query embedding cache entries, 0 means default
}

// New creates an embedder from config. Providers that need credentials fail
// fast here, not on first use. The returned embedder is wrapped with an LRU
// cache for repeated query embeddings.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	provider := ProviderType(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if !IsValidProvider(string(provider)) {
		return nil, fmt.Errorf("unknown embedding provider %q (valid: %s)",
			cfg.Provider, strings.Join(ValidProviders(), ", "))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels[provider]
	}

	var (
		inner Embedder
		err   error
	)
	switch provider {
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(ctx, OpenAIConfig{Model: model, BatchSize: cfg.BatchSize})
	case ProviderGoogle:
		inner, err = NewGoogleEmbedder(ctx, GoogleConfig{Model: model, BatchSize: cfg.BatchSize})
	case ProviderVoyage:
		inner, err = NewVoyageEmbedder(ctx, VoyageConfig{Model: model, BatchSize: cfg.BatchSize})
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{Model: model, BatchSize: cfg.BatchSize})
	case ProviderStatic:
		inner = NewStaticEmbedder()
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// ValidProviders returns all valid provider names, sorted.
func ValidProviders() []string {
	return []string{
		string(ProviderGoogle),
		string(ProviderOllama),
		string(ProviderOpenAI),
		string(ProviderStatic),
		string(ProviderVoyage),
	}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}
