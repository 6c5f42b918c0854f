package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Chunk_HeadingBasedSplitting(t *testing.T) {
	chunker := New()

	content := `# Title

Welcome.

## Section 1

Content one.

## Section 2

Content two.
`

	chunks := chunker.Chunk(content, "README.md")
	require.Len(t, chunks, 3, "expected one chunk per section")

	assert.Equal(t, "Title", chunks[0].Heading)
	assert.Equal(t, 1, chunks[0].HeadingLevel)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Contains(t, chunks[0].Content, "# Title")
	assert.Contains(t, chunks[0].Content, "Welcome.")

	assert.Equal(t, "Section 1", chunks[1].Heading)
	assert.Equal(t, 2, chunks[1].HeadingLevel)
	assert.Equal(t, 5, chunks[1].StartLine)
	assert.Contains(t, chunks[1].Content, "Content one.")

	assert.Equal(t, "Section 2", chunks[2].Heading)
	assert.Equal(t, 9, chunks[2].StartLine)
	assert.Equal(t, 11, chunks[2].EndLine)

	for _, c := range chunks {
		assert.Equal(t, "README.md", c.Source)
		assert.Equal(t, Fingerprint(c.Content), c.Fingerprint)
	}
}

func TestChunker_Chunk_NoHeadings(t *testing.T) {
	chunker := New()

	chunks := chunker.Chunk("first paragraph\nsecond paragraph", "plain.md")
	require.Len(t, chunks, 1)

	assert.Equal(t, "", chunks[0].Heading)
	assert.Equal(t, 0, chunks[0].HeadingLevel)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, "first paragraph\nsecond paragraph", chunks[0].Content)
}

func TestChunker_Chunk_EmptyDocument(t *testing.T) {
	chunker := New()

	assert.Empty(t, chunker.Chunk("", "empty.md"))
	assert.Empty(t, chunker.Chunk("   \n\n\t\t\n   ", "whitespace.md"))
}

func TestChunker_Chunk_TrailingNewline(t *testing.T) {
	chunker := New()

	chunks := chunker.Chunk("alpha\n", "one.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine, "trailing newline must not add a phantom line")
	assert.Equal(t, "alpha", chunks[0].Content)
}

func TestChunker_Chunk_SizeSplitWithOverlap(t *testing.T) {
	chunker := NewWithOptions(Options{MaxChunkSize: 20, OverlapLines: 1})

	a := strings.Repeat("a", 10)
	b := strings.Repeat("b", 10)
	c := strings.Repeat("c", 10)

	chunks := chunker.Chunk(a+"\n"+b+"\n"+c, "split.md")
	require.Len(t, chunks, 3)

	assert.Equal(t, a, chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)

	// The second chunk is seeded with the last line of the first, so its
	// declared span overlaps by one line.
	assert.Equal(t, a+"\n"+b, chunks[1].Content)
	assert.Equal(t, 1, chunks[1].StartLine)
	assert.Equal(t, 2, chunks[1].EndLine)

	assert.Equal(t, b+"\n"+c, chunks[2].Content)
	assert.Equal(t, 2, chunks[2].StartLine)
	assert.Equal(t, 3, chunks[2].EndLine)
}

func TestChunker_Chunk_SplitsCoverEveryLine(t *testing.T) {
	chunker := NewWithOptions(Options{MaxChunkSize: 50, OverlapLines: 2})

	var sb strings.Builder
	const totalLines = 20
	for i := 1; i <= totalLines; i++ {
		sb.WriteString(strings.Repeat("x", 15))
		sb.WriteString("\n")
	}

	chunks := chunker.Chunk(sb.String(), "long.md")
	require.Greater(t, len(chunks), 1, "document should be split")

	covered := make(map[int]bool)
	for i, c := range chunks {
		require.LessOrEqual(t, c.StartLine, c.EndLine)
		for ln := c.StartLine; ln <= c.EndLine; ln++ {
			covered[ln] = true
		}
		if i > 0 {
			assert.LessOrEqual(t, c.StartLine, chunks[i-1].EndLine+1,
				"chunk %d must not leave a gap", i)
		}
	}
	for ln := 1; ln <= totalLines; ln++ {
		assert.True(t, covered[ln], "line %d not covered by any chunk", ln)
	}
}

func TestChunker_Chunk_HeadingBoundaryCarriesNoOverlap(t *testing.T) {
	// The buffer is close to the size limit when the heading arrives, so both
	// boundary rules trigger on the same line. The heading wins and the new
	// chunk starts clean.
	chunker := NewWithOptions(Options{MaxChunkSize: 12, OverlapLines: 2})

	chunks := chunker.Chunk("aaaa\nbbbb\n# Head\nbody", "pref.md")
	require.Len(t, chunks, 2)

	assert.Equal(t, "aaaa\nbbbb", chunks[0].Content)
	assert.Equal(t, 2, chunks[0].EndLine)

	assert.Equal(t, 3, chunks[1].StartLine)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "# Head"))
	assert.NotContains(t, chunks[1].Content, "bbbb", "no overlap across a heading boundary")
	assert.Equal(t, "Head", chunks[1].Heading)
	assert.Equal(t, 1, chunks[1].HeadingLevel)
}

func TestChunker_Chunk_OversizedSingleLine(t *testing.T) {
	chunker := NewWithOptions(Options{MaxChunkSize: 5, OverlapLines: 1})

	chunks := chunker.Chunk("abcdefghij", "wide.md")
	require.Len(t, chunks, 1, "a single line is never split")
	assert.Equal(t, "abcdefghij", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestChunker_Chunk_HeadingLevels(t *testing.T) {
	chunker := New()

	chunks := chunker.Chunk("###### Six\nbody", "deep.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Six", chunks[0].Heading)
	assert.Equal(t, 6, chunks[0].HeadingLevel)

	// Seven hashes is not a heading.
	chunks = chunker.Chunk("intro\n####### NotAHeading", "fake.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].HeadingLevel)
	assert.Contains(t, chunks[0].Content, "####### NotAHeading")
}

func TestChunker_Chunk_EmptySectionSkipped(t *testing.T) {
	chunker := New()

	content := "# One\n\nbody one\n\n## Empty\n\n## Two\n\nbody two\n"
	chunks := chunker.Chunk(content, "gaps.md")

	headings := make([]string, 0, len(chunks))
	for _, c := range chunks {
		headings = append(headings, c.Heading)
	}
	// "Empty" still emits a chunk because its heading line plus the blank line
	// is non-empty content; only genuinely blank buffers are skipped.
	assert.Contains(t, headings, "One")
	assert.Contains(t, headings, "Two")
}

func TestChunker_Chunk_Deterministic(t *testing.T) {
	chunker := NewWithOptions(Options{MaxChunkSize: 60, OverlapLines: 2})

	var sb strings.Builder
	sb.WriteString("# Notes\n\n")
	for i := 0; i < 12; i++ {
		sb.WriteString(strings.Repeat("word ", 6))
		sb.WriteString("\n")
	}
	content := sb.String()

	first := chunker.Chunk(content, "notes.md")
	second := chunker.Chunk(content, "notes.md")
	assert.Equal(t, first, second, "identical input must yield identical chunks")
}

func BenchmarkChunker_Chunk(b *testing.B) {
	chunker := New()

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("## Section\n\n")
		sb.WriteString(strings.Repeat("Content paragraph with some text. ", 10))
		sb.WriteString("\n\n")
	}
	content := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunker.Chunk(content, "bench.md")
	}
}
