// Package chunk splits markdown documents into heading-scoped chunks and
// assigns each a stable, content-addressed identity.
package chunk

import (
	"regexp"
	"strings"
)

// Chunking defaults.
const (
	// DefaultMaxChunkSize is the maximum chunk size in characters.
	DefaultMaxChunkSize = 1500

	// DefaultOverlapLines is the number of trailing lines carried into the
	// next chunk when a section is split for size.
	DefaultOverlapLines = 2
)

// headingPattern matches ATX headings: # Title, ## Title, etc.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// ParseHeading reports whether line is an ATX heading, and if so returns
// its trimmed text and level (1 to 6).
func ParseHeading(line string) (text string, level int, ok bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[2]), len(m[1]), true
}

// Chunk is a contiguous span of one source markdown document.
type Chunk struct {
	Source       string // canonical path of the originating file
	Content      string // exact text span
	Heading      string // nearest enclosing heading text ("" if none)
	HeadingLevel int    // heading nesting depth, 0 = no enclosing heading
	StartLine    int    // 1-indexed, inclusive
	EndLine      int    // 1-indexed, inclusive
	Fingerprint  string // content hash, see Fingerprint()
}

// Options configures the chunker.
type Options struct {
	MaxChunkSize int // maximum characters per chunk
	OverlapLines int // lines of overlap on forced size splits
}

// Chunker implements heading-scoped markdown chunking.
// It is stateless and safe for concurrent use.
type Chunker struct {
	opts Options
}

// New creates a chunker with default options.
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a chunker with custom options.
func NewWithOptions(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.OverlapLines < 0 {
		opts.OverlapLines = DefaultOverlapLines
	}
	return &Chunker{opts: opts}
}

// Chunk splits a markdown document into heading-scoped chunks.
//
// The document is traversed top to bottom. A heading line closes the current
// chunk and opens a new section; the heading line itself belongs to the new
// section. Within a section, a chunk is closed once appending the next line
// would exceed MaxChunkSize characters; the next chunk is then seeded with the
// last OverlapLines lines of the closed one so context survives the split.
// Heading boundaries never carry overlap. When a heading line would also
// overflow the size limit, the heading boundary wins and no overlap is
// carried.
//
// Identical input always yields an identical chunk sequence.
func (c *Chunker) Chunk(text, source string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	// A trailing newline produces a phantom empty element; drop it so line
	// spans never exceed the document's real line count.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var (
		chunks       []Chunk
		buf          []string
		bufStart     = 1
		bufSize      int
		heading      string
		headingLevel int
	)

	flush := func(endLine int) {
		content := strings.Join(buf, "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Source:       source,
				Content:      content,
				Heading:      heading,
				HeadingLevel: headingLevel,
				StartLine:    bufStart,
				EndLine:      endLine,
				Fingerprint:  Fingerprint(content),
			})
		}
		buf = nil
		bufSize = 0
	}

	for i, line := range lines {
		lineNo := i + 1

		if text, level, ok := ParseHeading(line); ok {
			// Heading boundary: close the current chunk without overlap.
			flush(lineNo - 1)
			headingLevel = level
			heading = text
			buf = []string{line}
			bufStart = lineNo
			bufSize = len(line)
			continue
		}

		if len(buf) > 0 && bufSize+1+len(line) > c.opts.MaxChunkSize {
			// Forced size split: close the chunk and seed the next one with
			// the trailing overlap lines. The overlap counts toward the new
			// chunk's true start line.
			overlap := c.opts.OverlapLines
			if overlap > len(buf) {
				overlap = len(buf)
			}
			tail := make([]string, overlap)
			copy(tail, buf[len(buf)-overlap:])

			flush(lineNo - 1)

			buf = append(tail, line)
			bufStart = lineNo - overlap
			bufSize = len(strings.Join(buf, "\n"))
			continue
		}

		if len(buf) == 0 {
			bufStart = lineNo
			bufSize = len(line)
		} else {
			bufSize += 1 + len(line)
		}
		buf = append(buf, line)
	}

	flush(len(lines))
	return chunks
}
