// Package store persists chunk records and serves similarity search over
// them. Two implementations exist: an embedded local store (SQLite + HNSW)
// and a Qdrant-backed remote store.
package store

import (
	"context"
	"fmt"
	"strings"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "memsearch_chunks"

// Record is a stored chunk with its embedding vector. ID is the stable chunk
// identifier and the primary key; upserting the same ID twice is a no-op for
// the second write.
type Record struct {
	ID           string
	Source       string
	Heading      string
	HeadingLevel int
	StartLine    int
	EndLine      int
	Content      string
	Vector       []float32
}

// SearchResult pairs a record with its similarity score. Higher is better,
// in [0, 1] for cosine.
type SearchResult struct {
	Record
	Score float32
}

// SearchRequest describes one similarity query.
type SearchRequest struct {
	Vector    []float32
	QueryText string // optional raw query, enables keyword boost where supported
	TopK      int
	Source    string // optional, restrict results to one source file
}

// VectorStore abstracts chunk persistence and similarity search.
type VectorStore interface {
	// Upsert inserts or replaces records keyed by ID. All vectors must
	// match the store dimension.
	Upsert(ctx context.Context, records []Record) error

	// Search returns the TopK records nearest to the request vector,
	// ranked by descending score.
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)

	// Query retrieves records by scalar filter, no vector needed. An empty
	// source returns everything.
	Query(ctx context.Context, source string) ([]Record, error)

	// IDsBySource returns the set of chunk IDs stored for a source file.
	IDsBySource(ctx context.Context, source string) (map[string]struct{}, error)

	// Sources returns all distinct source paths in the collection.
	Sources(ctx context.Context) ([]string, error)

	// DeleteByIDs removes records by chunk ID. Unknown IDs are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error

	// DeleteBySource removes every record belonging to a source file.
	DeleteBySource(ctx context.Context, source string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Drop removes the entire collection.
	Drop(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates the store was built with a different
// embedding dimension than the caller is using, typically after switching
// embedding models without resetting the collection.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store has %d, got %d (run 'memsearch reset' after switching models)", e.Expected, e.Got)
}

// Config selects and configures a store backend.
type Config struct {
	URI        string // filesystem path for local, http(s):// endpoint for Qdrant
	Collection string // empty means DefaultCollection
	Dimensions int    // embedding dimension the collection is pinned to
}

// Open creates a store from config. HTTP(S) URIs open a Qdrant client;
// anything else is treated as a local database path.
func Open(ctx context.Context, cfg Config) (VectorStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("store dimensions must be positive, got %d", cfg.Dimensions)
	}

	if strings.HasPrefix(cfg.URI, "http://") || strings.HasPrefix(cfg.URI, "https://") {
		return NewQdrantStore(ctx, cfg)
	}
	return NewLocalStore(ctx, cfg)
}
