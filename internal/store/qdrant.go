package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// scrollPageSize is the number of points fetched per scroll request.
const scrollPageSize = 256

// QdrantStore stores chunks in a Qdrant collection. Qdrant requires UUID or
// integer point IDs, so each chunk ID is mapped to a deterministic UUIDv5
// and the original ID travels in the payload.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dims       int
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects to a Qdrant endpoint like http://localhost:6333.
// The gRPC port is derived from the HTTP port. QDRANT_API_KEY supplies the
// API key for managed deployments. The collection is created on first use
// and its dimension validated on every open.
func NewQdrantStore(ctx context.Context, cfg Config) (*QdrantStore, error) {
	parsed, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URI %q: %w", cfg.URI, err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	// gRPC listens one above the HTTP port by convention.
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dimensions,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	if cfg := info.GetConfig(); cfg != nil && cfg.GetParams() != nil {
		if vc := cfg.GetParams().GetVectorsConfig(); vc != nil && vc.GetParams() != nil {
			if size := int(vc.GetParams().GetSize()); size != s.dims {
				return ErrDimensionMismatch{Expected: size, Got: s.dims}
			}
		}
	}
	return nil
}

// pointID maps a chunk ID to its deterministic Qdrant point UUID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Upsert inserts or replaces records keyed by their derived point UUID.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(r.Vector)}
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":      r.ID,
				"source":        r.Source,
				"heading":       r.Heading,
				"heading_level": int64(r.HeadingLevel),
				"start_line":    int64(r.StartLine),
				"end_line":      int64(r.EndLine),
				"content":       r.Content,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the TopK nearest records. QueryText is accepted but has no
// effect here; the keyword boost is a local-store feature.
func (s *QdrantStore) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if len(req.Vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(req.Vector)}
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	limit := uint64(req.TopK)
	queryReq := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.Source != "" {
		queryReq.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("source", req.Source)},
		}
	}

	points, err := s.client.Query(ctx, queryReq)
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, SearchResult{
			Record: recordFromPayload(p.GetPayload()),
			Score:  p.GetScore(),
		})
	}
	return results, nil
}

// Query retrieves records by scalar filter via scroll pagination.
func (s *QdrantStore) Query(ctx context.Context, source string) ([]Record, error) {
	var records []Record
	err := s.scroll(ctx, source, qdrant.NewWithPayload(true), func(p *qdrant.RetrievedPoint) {
		records = append(records, recordFromPayload(p.GetPayload()))
	})
	return records, err
}

// IDsBySource returns the set of chunk IDs stored for a source file.
func (s *QdrantStore) IDsBySource(ctx context.Context, source string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.scroll(ctx, source, qdrant.NewWithPayloadInclude("chunk_id"), func(p *qdrant.RetrievedPoint) {
		if id := p.GetPayload()["chunk_id"].GetStringValue(); id != "" {
			ids[id] = struct{}{}
		}
	})
	return ids, err
}

// Sources returns all distinct source paths in the collection.
func (s *QdrantStore) Sources(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.scroll(ctx, "", qdrant.NewWithPayloadInclude("source"), func(p *qdrant.RetrievedPoint) {
		if src := p.GetPayload()["source"].GetStringValue(); src != "" {
			seen[src] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(seen))
	for src := range seen {
		sources = append(sources, src)
	}
	return sources, nil
}

// scroll pages through the collection, optionally filtered by source. The
// high-level client returns points without the next-page cursor, so the last
// point ID is reused as offset and overlapping points are deduplicated.
func (s *QdrantStore) scroll(ctx context.Context, source string, payload *qdrant.WithPayloadSelector, visit func(*qdrant.RetrievedPoint)) error {
	var filter *qdrant.Filter
	if source != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("source", source)},
		}
	}

	seen := make(map[string]struct{})
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    payload,
		})
		if err != nil {
			return fmt.Errorf("qdrant scroll failed: %w", err)
		}

		progressed := false
		for _, p := range points {
			key := p.GetId().GetUuid()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			progressed = true
			visit(p)
		}

		if len(points) < scrollPageSize || !progressed {
			return nil
		}
		offset = points[len(points)-1].GetId()
	}
}

// DeleteByIDs removes records by chunk ID.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(pointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d points: %w", len(ids), err)
	}
	return nil
}

// DeleteBySource removes every record belonging to a source file.
func (s *QdrantStore) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("source", source)},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", source, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// Drop deletes the whole collection.
func (s *QdrantStore) Drop(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", s.collection, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func recordFromPayload(payload map[string]*qdrant.Value) Record {
	return Record{
		ID:           payload["chunk_id"].GetStringValue(),
		Source:       payload["source"].GetStringValue(),
		Heading:      payload["heading"].GetStringValue(),
		HeadingLevel: int(payload["heading_level"].GetIntegerValue()),
		StartLine:    int(payload["start_line"].GetIntegerValue()),
		EndLine:      int(payload["end_line"].GetIntegerValue()),
		Content:      payload["content"].GetStringValue(),
	}
}
