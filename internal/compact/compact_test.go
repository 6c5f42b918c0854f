package compact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memsearch/memsearch/internal/chunk"
	"github.com/memsearch/memsearch/internal/embed"
	"github.com/memsearch/memsearch/internal/index"
	"github.com/memsearch/memsearch/internal/store"
)

// memStore is a minimal in-memory VectorStore for flush tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]store.Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]store.Record)}
}

func (s *memStore) Upsert(_ context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *memStore) Search(_ context.Context, _ store.SearchRequest) ([]store.SearchResult, error) {
	return nil, nil
}

func (s *memStore) Query(_ context.Context, source string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Record
	for _, r := range s.records {
		if source == "" || r.Source == source {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) IDsBySource(_ context.Context, source string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{})
	for id, r := range s.records {
		if r.Source == source {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (s *memStore) Sources(_ context.Context) ([]string, error) { return nil, nil }

func (s *memStore) DeleteByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *memStore) DeleteBySource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.Source == source {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *memStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *memStore) Drop(_ context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

// fakeSummarizer returns a canned summary and records the prompt.
type fakeSummarizer struct {
	summary string
	err     error
	prompt  string
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.summary, f.err
}

func (f *fakeSummarizer) Close() error { return nil }

func seedRecord(id, source, content string) store.Record {
	return store.Record{
		ID:      id,
		Source:  source,
		Content: content,
		Vector:  make([]float32, embed.StaticDimensions),
	}
}

func newCompactor(t *testing.T, st *memStore, summary string) (*Compactor, *fakeSummarizer) {
	t.Helper()
	summarizer := &fakeSummarizer{summary: summary}
	engine := index.New(index.Config{
		Chunker:  chunk.New(),
		Embedder: embed.NewStaticEmbedder(),
		Store:    st,
	})
	c := New(st, summarizer, engine)
	c.now = func() time.Time {
		return time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	}
	return c, summarizer
}

func TestCompactor_FlushWritesMemoryFile(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "decided to use qdrant for the team index"),
		seedRecord("c2", "b.md", "standup moved to 9:30"),
	}))

	c, summarizer := newCompactor(t, st, "- qdrant chosen\n- standup now 9:30")
	dir := t.TempDir()

	res, err := c.Flush(context.Background(), Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChunksRead)
	assert.Equal(t, filepath.Join(dir, "memory", "2026-08-31.md"), res.Path)
	assert.Contains(t, summarizer.prompt, "qdrant")
	assert.Contains(t, summarizer.prompt, "standup")

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), FlushHeading+" 14:30")
	assert.Contains(t, string(data), "- qdrant chosen")
}

func TestCompactor_FlushIndexesMemoryFile(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "some indexed note"),
	}))

	c, _ := newCompactor(t, st, "the digest")
	res, err := c.Flush(context.Background(), Options{OutputDir: t.TempDir()})
	require.NoError(t, err)

	ids, err := st.IDsBySource(context.Background(), res.Path)
	require.NoError(t, err)
	assert.NotEmpty(t, ids, "the memory file should be indexed after the flush")
}

func TestCompactor_FlushFiltersBySource(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "alpha fact"),
		seedRecord("c2", "b.md", "beta fact"),
	}))

	c, summarizer := newCompactor(t, st, "alpha digest")
	res, err := c.Flush(context.Background(), Options{Source: "a.md", OutputDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ChunksRead)
	assert.Contains(t, summarizer.prompt, "alpha fact")
	assert.NotContains(t, summarizer.prompt, "beta fact")
}

func TestCompactor_FlushAppendsSameDay(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "a fact"),
	}))

	c, _ := newCompactor(t, st, "digest one")
	dir := t.TempDir()

	first, err := c.Flush(context.Background(), Options{OutputDir: dir})
	require.NoError(t, err)
	_, err = c.Flush(context.Background(), Options{OutputDir: dir})
	require.NoError(t, err)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), FlushHeading))
}

func TestCompactor_FlushEmptyStoreFails(t *testing.T) {
	c, _ := newCompactor(t, newMemStore(), "unused")

	_, err := c.Flush(context.Background(), Options{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to compact")
}

func TestCompactor_SummarizerErrorPropagates(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "a fact"),
	}))

	c, summarizer := newCompactor(t, st, "")
	summarizer.err = errors.New("model not loaded")

	_, err := c.Flush(context.Background(), Options{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestCompactor_EmptySummaryFails(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.Upsert(context.Background(), []store.Record{
		seedRecord("c1", "a.md", "a fact"),
	}))

	c, _ := newCompactor(t, st, "   ")
	_, err := c.Flush(context.Background(), Options{OutputDir: t.TempDir()})
	require.Error(t, err)
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	_, err := NewSummarizer(context.Background(), "anthropic", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google")
	assert.Contains(t, err.Error(), "ollama")
}

func TestNewSummarizer_Ollama(t *testing.T) {
	s, err := NewSummarizer(context.Background(), " Ollama ", "llama3.2")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.IsType(t, &OllamaSummarizer{}, s)
}

func TestNewSummarizer_GoogleRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := NewSummarizer(context.Background(), "google", "gemini-2.5-flash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
