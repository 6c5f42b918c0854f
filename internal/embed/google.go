package embed

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// DefaultGoogleDimensions is the output dimensionality requested from Gemini
// embedding models. The API supports Matryoshka truncation, so a fixed size
// keeps collections comparable across model revisions.
const DefaultGoogleDimensions = 768

// GoogleConfig configures the Gemini embedder.
type GoogleConfig struct {
	APIKey     string // empty means GEMINI_API_KEY, then GOOGLE_API_KEY
	Model      string
	Dimensions int
	BatchSize  int
}

// GoogleEmbedder generates embeddings via the Gemini API.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dims      int
	batchSize int
}

var _ Embedder = (*GoogleEmbedder)(nil)

// NewGoogleEmbedder creates a Gemini embedder, failing fast without an API key.
func NewGoogleEmbedder(ctx context.Context, cfg GoogleConfig) (*GoogleEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google provider requires GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[ProviderGoogle]
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultGoogleDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultGoogleBatchSize
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleEmbedder{
		client:    client,
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed generates the embedding for a single text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Batched(ctx, texts, e.batchSize, e.doEmbed)
}

func (e *GoogleEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dims := int32(e.dims)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed_content failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		// Truncated Matryoshka embeddings are not unit length; renormalize
		// so cosine distance behaves.
		vecs[i] = normalizeVector(emb.Values)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *GoogleEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *GoogleEmbedder) ModelName() string { return e.model }

// Close releases resources.
func (e *GoogleEmbedder) Close() error { return nil }
