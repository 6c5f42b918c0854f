// Package index implements incremental synchronization between markdown
// notes on disk and the vector store. Files are chunked, each chunk gets a
// content-derived ID, and only chunks whose IDs are not already stored get
// embedded. Chunks whose IDs disappear from a file are deleted.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/memsearch/memsearch/internal/chunk"
	"github.com/memsearch/memsearch/internal/embed"
	"github.com/memsearch/memsearch/internal/scanner"
	"github.com/memsearch/memsearch/internal/store"
)

// Config wires the engine's collaborators.
type Config struct {
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Store    store.VectorStore

	// ExcludePatterns and MaxFileSize are passed through to the scanner.
	ExcludePatterns []string
	MaxFileSize     int64
}

// FileStats reports the outcome of syncing a single file.
type FileStats struct {
	Added     int // chunks embedded and upserted
	Removed   int // stale chunks deleted
	Unchanged int // chunks already stored under the same ID
}

// Stats reports the outcome of syncing a set of roots.
type Stats struct {
	Files         int // files scanned
	Failed        int // files that could not be indexed
	Added         int
	Removed       int
	Unchanged     int
	PrunedSources int // indexed files no longer on disk
}

// Engine synchronizes note files with the store. Safe for concurrent use;
// per-call work is serialized so two syncs of the same file cannot
// interleave their delete and upsert phases.
type Engine struct {
	chunker  *chunk.Chunker
	embedder embed.Embedder
	store    store.VectorStore

	excludePatterns []string
	maxFileSize     int64

	mu sync.Mutex
}

// New creates a sync engine.
func New(cfg Config) *Engine {
	return &Engine{
		chunker:         cfg.Chunker,
		embedder:        cfg.Embedder,
		store:           cfg.Store,
		excludePatterns: cfg.ExcludePatterns,
		maxFileSize:     cfg.MaxFileSize,
	}
}

// IndexFile syncs one file against the store. Missing files are treated as
// deletions. With force set, every chunk is re-embedded and re-upserted
// even when its ID is already stored.
func (e *Engine) IndexFile(ctx context.Context, path string, force bool) (FileStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indexFileLocked(ctx, path, force)
}

func (e *Engine) indexFileLocked(ctx context.Context, path string, force bool) (FileStats, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(source)
	if os.IsNotExist(err) {
		return e.removeLocked(ctx, source)
	}
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to read %s: %w", source, err)
	}

	model := e.embedder.ModelName()
	chunks := e.chunker.Chunk(string(data), source)

	desired := make(map[string]chunk.Chunk, len(chunks))
	for _, c := range chunks {
		desired[c.ID(model)] = c
	}

	existing, err := e.store.IDsBySource(ctx, source)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to load stored IDs for %s: %w", source, err)
	}

	var stats FileStats

	// Delete first so a chunk that moved within the file is never stored
	// twice under stale line numbers.
	var stale []string
	for id := range existing {
		if _, keep := desired[id]; !keep {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := e.store.DeleteByIDs(ctx, stale); err != nil {
			return FileStats{}, fmt.Errorf("failed to delete stale chunks for %s: %w", source, err)
		}
		stats.Removed = len(stale)
	}

	var pending []chunk.Chunk
	var pendingIDs []string
	for id, c := range desired {
		if _, ok := existing[id]; ok && !force {
			stats.Unchanged++
			continue
		}
		pending = append(pending, c)
		pendingIDs = append(pendingIDs, id)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to embed %d chunks from %s: %w", len(pending), source, err)
	}
	if len(vectors) != len(pending) {
		return FileStats{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pending))
	}

	records := make([]store.Record, len(pending))
	for i, c := range pending {
		records[i] = store.Record{
			ID:           pendingIDs[i],
			Source:       c.Source,
			Heading:      c.Heading,
			HeadingLevel: c.HeadingLevel,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			Content:      c.Content,
			Vector:       vectors[i],
		}
	}
	if err := e.store.Upsert(ctx, records); err != nil {
		return FileStats{}, fmt.Errorf("failed to upsert chunks for %s: %w", source, err)
	}
	stats.Added = len(records)
	return stats, nil
}

// RemoveFile deletes every stored chunk for a file.
func (e *Engine) RemoveFile(ctx context.Context, path string) (FileStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	source, err := filepath.Abs(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return e.removeLocked(ctx, source)
}

func (e *Engine) removeLocked(ctx context.Context, source string) (FileStats, error) {
	existing, err := e.store.IDsBySource(ctx, source)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to load stored IDs for %s: %w", source, err)
	}
	if len(existing) == 0 {
		return FileStats{}, nil
	}
	if err := e.store.DeleteBySource(ctx, source); err != nil {
		return FileStats{}, fmt.Errorf("failed to delete chunks for %s: %w", source, err)
	}
	return FileStats{Removed: len(existing)}, nil
}

// IndexAll scans the roots and syncs every markdown file found. Files that
// fail to index are logged and counted, not fatal. Indexed sources under a
// root that no longer exist on disk are pruned from the store.
func (e *Engine) IndexAll(ctx context.Context, roots []string, force bool) (Stats, error) {
	files, err := scanner.New(scanner.Options{
		Roots:           roots,
		ExcludePatterns: e.excludePatterns,
		MaxFileSize:     e.maxFileSize,
	}).ScanAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("scan failed: %w", err)
	}

	var stats Stats
	onDisk := make(map[string]struct{}, len(files))

	for _, f := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		onDisk[f.Path] = struct{}{}

		fs, err := e.IndexFile(ctx, f.Path, force)
		if err != nil {
			slog.Error("failed to index file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		stats.Files++
		stats.Added += fs.Added
		stats.Removed += fs.Removed
		stats.Unchanged += fs.Unchanged
	}

	pruned, err := e.pruneMissing(ctx, roots, onDisk)
	if err != nil {
		return stats, err
	}
	stats.PrunedSources = pruned
	return stats, nil
}

// pruneMissing deletes stored sources that live under one of the roots but
// were not seen on disk. Sources outside the roots are left alone.
func (e *Engine) pruneMissing(ctx context.Context, roots []string, onDisk map[string]struct{}) (int, error) {
	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		absRoots = append(absRoots, abs)
	}

	sources, err := e.store.Sources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed sources: %w", err)
	}

	pruned := 0
	for _, src := range sources {
		if _, ok := onDisk[src]; ok {
			continue
		}
		if !underAny(src, absRoots) {
			continue
		}
		slog.Info("pruning deleted file", slog.String("source", src))
		if err := e.store.DeleteBySource(ctx, src); err != nil {
			return pruned, fmt.Errorf("failed to prune %s: %w", src, err)
		}
		pruned++
	}
	return pruned, nil
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Search embeds the query and runs a similarity search. An empty source
// means no filter.
func (e *Engine) Search(ctx context.Context, query string, topK int, source string) ([]store.SearchResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return e.store.Search(ctx, store.SearchRequest{
		Vector:    vec,
		QueryText: query,
		TopK:      topK,
		Source:    source,
	})
}
