package embed

import (
	"context"
	"sync"
)

// countingEmbedder is a deterministic fake that records how many texts reach
// the backend.
type countingEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	batchCalls int
	seenTexts  int
	model      string
	dims       int
	closed     bool
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{model: "counting-fake", dims: 4}
}

func (f *countingEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, f.dims)
	for i, b := range []byte(text) {
		v[i%f.dims] += float32(b)
	}
	return normalizeVector(v)
}

func (f *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	f.seenTexts++
	return f.vectorFor(text), nil
}

func (f *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	f.seenTexts += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *countingEmbedder) Dimensions() int    { return f.dims }
func (f *countingEmbedder) ModelName() string  { return f.model }
func (f *countingEmbedder) Close() error       { f.closed = true; return nil }
