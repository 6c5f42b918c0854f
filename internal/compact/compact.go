// Package compact condenses indexed notes into dated memory files. A flush
// collects stored chunks, asks an LLM for a summary, appends it to
// memory/YYYY-MM-DD.md under a flush heading, and indexes the result so the
// summary is immediately searchable.
package compact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/memsearch/memsearch/internal/index"
	"github.com/memsearch/memsearch/internal/store"
)

// FlushHeading marks flushed summaries inside memory files.
const FlushHeading = "## Memory Flush"

// memoryDirName is the subdirectory of the output dir holding memory files.
const memoryDirName = "memory"

const summaryPrompt = `Summarize the following notes into a compact digest.
Keep concrete facts, decisions, names, numbers and dates. Drop filler and
repetition. Use short markdown bullet points.

Notes:

%s`

// Options configures one flush.
type Options struct {
	// Source restricts the flush to one indexed file; empty flushes
	// everything.
	Source string

	// OutputDir is where the memory/ directory lives.
	OutputDir string
}

// Result reports what a flush produced.
type Result struct {
	Summary    string
	Path       string // the memory file written
	ChunksRead int    // chunks fed to the summarizer
}

// Compactor runs flushes against a store, a summarizer and the sync engine.
type Compactor struct {
	store      store.VectorStore
	summarizer Summarizer
	engine     *index.Engine
	now        func() time.Time
}

// New creates a compactor.
func New(st store.VectorStore, summarizer Summarizer, engine *index.Engine) *Compactor {
	return &Compactor{
		store:      st,
		summarizer: summarizer,
		engine:     engine,
		now:        time.Now,
	}
}

// Flush summarizes stored chunks and appends the digest to today's memory
// file, then indexes that file.
func (c *Compactor) Flush(ctx context.Context, opts Options) (Result, error) {
	records, err := c.store.Query(ctx, opts.Source)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(records) == 0 {
		return Result{}, fmt.Errorf("nothing to compact: no indexed chunks%s", forSource(opts.Source))
	}

	summary, err := c.summarizer.Summarize(ctx, fmt.Sprintf(summaryPrompt, joinContents(records)))
	if err != nil {
		return Result{}, fmt.Errorf("summarization failed: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return Result{}, fmt.Errorf("summarizer returned an empty summary")
	}

	path, err := c.appendMemory(opts.OutputDir, summary)
	if err != nil {
		return Result{}, err
	}

	if _, err := c.engine.IndexFile(ctx, path, false); err != nil {
		return Result{}, fmt.Errorf("failed to index memory file: %w", err)
	}

	slog.Info("flushed memory",
		slog.String("path", path),
		slog.Int("chunks", len(records)))

	return Result{Summary: summary, Path: path, ChunksRead: len(records)}, nil
}

// appendMemory writes the summary under a flush heading in today's memory
// file, creating directories and the file as needed.
func (c *Compactor) appendMemory(outputDir, summary string) (string, error) {
	dir := filepath.Join(outputDir, memoryDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create memory directory: %w", err)
	}

	path := filepath.Join(dir, c.now().Format("2006-01-02")+".md")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open memory file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entry := fmt.Sprintf("%s %s\n\n%s\n\n", FlushHeading, c.now().Format("15:04"), summary)
	if _, err := f.WriteString(entry); err != nil {
		return "", fmt.Errorf("failed to append to memory file: %w", err)
	}
	return path, nil
}

func joinContents(records []store.Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func forSource(source string) string {
	if source == "" {
		return ""
	}
	return " for " + source
}
