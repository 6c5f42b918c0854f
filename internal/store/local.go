package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/coder/hnsw"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// Hybrid scoring weights. The keyword side only contributes when the caller
// supplies QueryText.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// candidateMultiplier widens the ANN candidate set so post-filtering by
// source and keyword re-ranking still fill TopK.
const candidateMultiplier = 4

// LocalStore is the embedded store: records live in SQLite, similarity
// search runs over an in-memory HNSW graph rebuilt on open, and an in-memory
// bleve index provides the keyword boost for hybrid queries.
type LocalStore struct {
	mu sync.RWMutex

	db      *sql.DB
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64 // chunk ID -> graph key
	keyMap  map[uint64]string // graph key -> chunk ID
	nextKey uint64
	keyword bleve.Index
	dims    int
	closed  bool
}

var _ VectorStore = (*LocalStore)(nil)

const localSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	heading       TEXT NOT NULL DEFAULT '',
	heading_level INTEGER NOT NULL DEFAULT 0,
	start_line    INTEGER NOT NULL,
	end_line      INTEGER NOT NULL,
	content       TEXT NOT NULL,
	vector        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewLocalStore opens (or creates) a local store at cfg.URI. The embedding
// dimension is pinned in the database on first open; reopening with a
// different dimension fails with ErrDimensionMismatch.
func NewLocalStore(ctx context.Context, cfg Config) (*LocalStore, error) {
	path, err := expandHome(cfg.URI)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// WAL must be set via PRAGMA; modernc.org/sqlite ignores DSN params.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, localSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &LocalStore{
		db:     db,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dims:   cfg.Dimensions,
	}

	if err := s.pinDimensions(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.graph = newCosineGraph()
	s.keyword, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}

	if err := s.rebuildIndexes(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newCosineGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	return g
}

// pinDimensions stores the dimension on first open and verifies it on every
// subsequent open.
func (s *LocalStore) pinDimensions(ctx context.Context) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('dimensions', ?)`, strconv.Itoa(s.dims))
		if err != nil {
			return fmt.Errorf("failed to pin dimensions: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read pinned dimensions: %w", err)
	}

	pinned, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt dimensions entry %q: %w", stored, err)
	}
	if pinned != s.dims {
		return ErrDimensionMismatch{Expected: pinned, Got: s.dims}
	}
	return nil
}

// rebuildIndexes loads every record into the HNSW graph and the keyword
// index. Both live in memory only; SQLite is the source of truth.
func (s *LocalStore) rebuildIndexes(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, vector FROM chunks`)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	batch := s.keyword.NewBatch()
	for rows.Next() {
		var id, content string
		var blob []byte
		if err := rows.Scan(&id, &content, &blob); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		s.addToGraph(id, decodeVector(blob))
		if err := batch.Index(id, keywordDoc(content)); err != nil {
			return fmt.Errorf("failed to batch keyword doc: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.keyword.Batch(batch)
}

// addToGraph inserts a vector under the caller's lock. Existing IDs are
// lazily deleted: the old node stays in the graph but loses its mapping.
func (s *LocalStore) addToGraph(id string, vec []float32) {
	if oldKey, ok := s.idMap[id]; ok {
		delete(s.keyMap, oldKey)
		delete(s.idMap, id)
	}
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, vec))
	s.idMap[id] = key
	s.keyMap[key] = id
}

// Upsert inserts or replaces records in one transaction.
func (s *LocalStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, r := range records {
		if len(r.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(r.Vector)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, source, heading, heading_level, start_line, end_line, content, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source, r.Heading, r.HeadingLevel,
			r.StartLine, r.EndLine, r.Content, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	// SQLite is committed; mirror into the in-memory indexes.
	batch := s.keyword.NewBatch()
	for _, r := range records {
		s.addToGraph(r.ID, r.Vector)
		if err := batch.Index(r.ID, keywordDoc(r.Content)); err != nil {
			return fmt.Errorf("failed to index keyword doc: %w", err)
		}
	}
	return s.keyword.Batch(batch)
}

// Search returns the TopK nearest records. With QueryText set, bleve keyword
// hits are blended in: final = 0.7 * vector + 0.3 * normalized keyword.
func (s *LocalStore) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(req.Vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(req.Vector)}
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if len(s.idMap) == 0 {
		return nil, nil
	}

	candidates := req.TopK
	if req.Source != "" || req.QueryText != "" {
		candidates *= candidateMultiplier
	}

	// Vector candidates from the graph. Lazy-deleted nodes surface with no
	// ID mapping and are skipped.
	vecScores := make(map[string]float32)
	for _, node := range s.graph.Search(req.Vector, candidates+s.orphanCount()) {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := s.graph.Distance(req.Vector, node.Value)
		vecScores[id] = 1 - dist/2
	}

	kwScores := make(map[string]float32)
	if req.QueryText != "" {
		search := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(req.QueryText), candidates, 0, false)
		res, err := s.keyword.Search(search)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		var maxScore float64
		for _, hit := range res.Hits {
			if hit.Score > maxScore {
				maxScore = hit.Score
			}
		}
		for _, hit := range res.Hits {
			if maxScore > 0 {
				kwScores[hit.ID] = float32(hit.Score / maxScore)
			}
		}
	}

	ids := make([]string, 0, len(vecScores)+len(kwScores))
	for id := range vecScores {
		ids = append(ids, id)
	}
	for id := range kwScores {
		if _, ok := vecScores[id]; !ok {
			ids = append(ids, id)
		}
	}

	results := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		rec, err := s.getRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Source != "" && rec.Source != req.Source {
			continue
		}

		vecScore, ok := vecScores[id]
		if !ok {
			// Keyword-only hit outside the ANN candidate set; score it
			// against the stored vector directly.
			vecScore = cosineScore(req.Vector, rec.Vector)
		}

		score := vecScore
		if req.QueryText != "" {
			score = vectorWeight*vecScore + keywordWeight*kwScores[id]
		}
		results = append(results, SearchResult{Record: rec, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// orphanCount is the number of lazy-deleted nodes still in the graph. Search
// widens its candidate request by this much so orphans can't crowd out live
// results.
func (s *LocalStore) orphanCount() int {
	return s.graph.Len() - len(s.idMap)
}

func (s *LocalStore) getRecord(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, heading, heading_level, start_line, end_line, content, vector
		FROM chunks WHERE id = ?`, id)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var blob []byte
	if err := row.Scan(&r.ID, &r.Source, &r.Heading, &r.HeadingLevel,
		&r.StartLine, &r.EndLine, &r.Content, &blob); err != nil {
		return Record{}, fmt.Errorf("failed to scan chunk: %w", err)
	}
	r.Vector = decodeVector(blob)
	return r, nil
}

// Query retrieves records by source, ordered by source and start line. An
// empty source returns the whole collection.
func (s *LocalStore) Query(ctx context.Context, source string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := `SELECT id, source, heading, heading_level, start_line, end_line, content, vector
		FROM chunks ORDER BY source, start_line`
	args := []any{}
	if source != "" {
		query = `SELECT id, source, heading, heading_level, start_line, end_line, content, vector
			FROM chunks WHERE source = ? ORDER BY start_line`
		args = append(args, source)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IDsBySource returns the set of chunk IDs stored for a source file.
func (s *LocalStore) IDsBySource(ctx context.Context, source string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE source = ?`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Sources returns all distinct source paths in the collection.
func (s *LocalStore) Sources(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM chunks ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteByIDs removes records by chunk ID.
func (s *LocalStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return s.deleteLocked(ctx, ids)
}

func (s *LocalStore) deleteLocked(ctx context.Context, ids []string) error {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	batch := s.keyword.NewBatch()
	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		batch.Delete(id)
	}
	return s.keyword.Batch(batch)
}

// DeleteBySource removes every record belonging to a source file.
func (s *LocalStore) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("failed to query ids for %s: %w", source, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.deleteLocked(ctx, ids)
}

// Count returns the number of stored records.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Drop removes every record and rebuilds the in-memory indexes empty. The
// dimension pin is cleared so the next open may use a different model.
func (s *LocalStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to drop chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = 'dimensions'`); err != nil {
		return fmt.Errorf("failed to clear dimension pin: %w", err)
	}

	s.graph = newCosineGraph()
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0

	keyword, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	old := s.keyword
	s.keyword = keyword
	return old.Close()
}

// Close releases resources.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	if err := s.keyword.Close(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func keywordDoc(content string) map[string]any {
	return map[string]any{"content": content}
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineScore maps cosine similarity into [0, 1], matching the graph's
// 1 - distance/2 scoring.
func cosineScore(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32((cos + 1) / 2)
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
