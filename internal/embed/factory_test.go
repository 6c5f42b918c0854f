package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownProviderListsChoices(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "milvus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"milvus"`)
	for _, p := range ValidProviders() {
		assert.Contains(t, err.Error(), p, "error should enumerate valid providers")
	}
}

func TestNew_StaticProvider(t *testing.T) {
	e, err := New(context.Background(), Config{Provider: "static"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok, "factory wraps providers with the query cache")
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_ProviderNameIsCaseInsensitive(t *testing.T) {
	e, err := New(context.Background(), Config{Provider: "  Static "})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, "static", e.ModelName())
}

func TestNew_MissingCredentialsFailFast(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VOYAGE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, provider := range []string{"openai", "voyage", "google"} {
		_, err := New(context.Background(), Config{Provider: provider})
		require.Error(t, err, "provider %s must fail without credentials", provider)
	}
}

func TestIsValidProvider(t *testing.T) {
	for _, p := range ValidProviders() {
		assert.True(t, IsValidProvider(p))
	}
	assert.True(t, IsValidProvider("OLLAMA"))
	assert.False(t, IsValidProvider("milvus"))
	assert.False(t, IsValidProvider(""))
}

func TestDefaultModels_CoverAllProviders(t *testing.T) {
	for _, p := range ValidProviders() {
		assert.NotEmpty(t, DefaultModels[ProviderType(p)], "no default model for %s", p)
	}
}
