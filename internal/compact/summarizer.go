package compact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Summarizer condenses note content into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
	Close() error
}

// LLM provider names.
const (
	LLMOllama = "ollama"
	LLMGoogle = "google"
)

// DefaultOllamaHost mirrors the embedding provider's default endpoint.
const DefaultOllamaHost = "http://localhost:11434"

const ollamaTimeout = 120 * time.Second

// NewSummarizer builds a summarizer for the named provider.
func NewSummarizer(ctx context.Context, provider, model string) (Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case LLMOllama:
		return NewOllamaSummarizer(model), nil
	case LLMGoogle:
		return NewGoogleSummarizer(ctx, model)
	default:
		valid := []string{LLMGoogle, LLMOllama}
		sort.Strings(valid)
		return nil, fmt.Errorf("unknown LLM provider %q (valid: %s)", provider, strings.Join(valid, ", "))
	}
}

// OllamaSummarizer generates summaries through a local Ollama instance.
type OllamaSummarizer struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaSummarizer uses OLLAMA_HOST or the default local endpoint.
func NewOllamaSummarizer(model string) *OllamaSummarizer {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaSummarizer{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: ollamaTimeout},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (s *OllamaSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama generate returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

func (s *OllamaSummarizer) Close() error { return nil }

// GoogleSummarizer generates summaries through the Gemini API.
type GoogleSummarizer struct {
	client *genai.Client
	model  string
}

// NewGoogleSummarizer requires GEMINI_API_KEY (or GOOGLE_API_KEY).
func NewGoogleSummarizer(ctx context.Context, model string) (*GoogleSummarizer, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("google LLM provider requires GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GoogleSummarizer{client: client, model: model}, nil
}

func (s *GoogleSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	temp := float32(0.3)
	result, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: &temp},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini returned an empty result")
	}
	return strings.TrimSpace(result.Text()), nil
}

func (s *GoogleSummarizer) Close() error { return nil }
