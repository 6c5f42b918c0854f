package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultVoyageBaseURL is the Voyage AI API endpoint.
const DefaultVoyageBaseURL = "https://api.voyageai.com/v1"

// voyageKnownDimensions maps well-known Voyage models to their dimensions.
var voyageKnownDimensions = map[string]int{
	"voyage-3-lite": 512,
	"voyage-3":      1024,
	"voyage-code-3": 1024,
}

// VoyageConfig configures the Voyage embedder.
type VoyageConfig struct {
	APIKey    string // empty means VOYAGE_API_KEY
	BaseURL   string
	Model     string
	BatchSize int
}

// VoyageEmbedder generates embeddings via the Voyage AI API.
type VoyageEmbedder struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	model     string
	batchSize int
	dims      int
}

var _ Embedder = (*VoyageEmbedder)(nil)

// NewVoyageEmbedder creates a Voyage embedder, failing fast without an API
// key and probing the dimension for models outside the known table.
func NewVoyageEmbedder(ctx context.Context, cfg VoyageConfig) (*VoyageEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("VOYAGE_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage provider requires VOYAGE_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultVoyageBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[ProviderVoyage]
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultVoyageBatchSize
	}

	e := &VoyageEmbedder{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
	}

	if dims, ok := voyageKnownDimensions[cfg.Model]; ok {
		e.dims = dims
	} else {
		trial, err := e.doEmbed(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("failed to detect dimensions for %s: %w", cfg.Model, err)
		}
		e.dims = len(trial[0])
	}

	return e, nil
}

// Embed generates the embedding for a single text.
func (e *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *VoyageEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Batched(ctx, texts, e.batchSize, e.doEmbed)
}

type voyageEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *VoyageEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(voyageEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voyage embeddings failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result voyageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("voyage returned %d embeddings for %d texts", len(result.Data), len(texts))
	}

	vecs := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *VoyageEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *VoyageEmbedder) ModelName() string { return e.model }

// Close releases resources.
func (e *VoyageEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
