package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	// Known SHA-256 digest.
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Fingerprint("hello"))

	assert.Equal(t, Fingerprint("same"), Fingerprint("same"))
	assert.NotEqual(t, Fingerprint("one"), Fingerprint("two"))
}

func TestIdentify_Deterministic(t *testing.T) {
	fp := Fingerprint("section body")

	first := Identify("notes/a.md", 1, 10, fp, "text-embedding-3-small")
	second := Identify("notes/a.md", 1, 10, fp, "text-embedding-3-small")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex-encoded SHA-256")
}

func TestIdentify_FieldSensitivity(t *testing.T) {
	fp := Fingerprint("section body")
	base := Identify("notes/a.md", 1, 10, fp, "text-embedding-3-small")

	tests := []struct {
		name string
		id   string
	}{
		{"source", Identify("notes/b.md", 1, 10, fp, "text-embedding-3-small")},
		{"start line", Identify("notes/a.md", 2, 10, fp, "text-embedding-3-small")},
		{"end line", Identify("notes/a.md", 1, 11, fp, "text-embedding-3-small")},
		{"fingerprint", Identify("notes/a.md", 1, 10, Fingerprint("other"), "text-embedding-3-small")},
		{"model", Identify("notes/a.md", 1, 10, fp, "voyage-3-lite")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.id, "changing the %s must change the identity", tt.name)
		})
	}
}

func TestIdentify_FramingPreventsCollisions(t *testing.T) {
	// Length framing keeps adjacent fields from bleeding into each other:
	// ("ab","c") and ("a","bc") concatenate identically without it.
	left := Identify("s.md", 1, 2, "ab", "c")
	right := Identify("s.md", 1, 2, "a", "bc")
	assert.NotEqual(t, left, right)
}

func TestChunk_ID(t *testing.T) {
	chunker := New()
	chunks := chunker.Chunk("# Title\n\nbody text\n", "doc.md")
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t,
		Identify(c.Source, c.StartLine, c.EndLine, c.Fingerprint, "m1"),
		c.ID("m1"))
	assert.NotEqual(t, c.ID("m1"), c.ID("m2"),
		"switching models must invalidate stored identifiers")
}
