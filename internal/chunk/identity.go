package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Fingerprint returns the content hash of a chunk's text, used for change
// detection and as one input to Identify.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Identify derives the stable chunk identifier from a chunk's location,
// content fingerprint, and the embedding model active at index time.
//
// Each field is netstring-framed (length, colon, bytes) before hashing so no
// two distinct field tuples can produce the same byte stream. Including the
// model name means switching embedding models invalidates every stored
// identifier, which forces re-embedding; vectors are not comparable across
// models.
func Identify(source string, startLine, endLine int, fingerprint, model string) string {
	h := sha256.New()
	for _, field := range []string{
		source,
		strconv.Itoa(startLine),
		strconv.Itoa(endLine),
		fingerprint,
		model,
	} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ID is a convenience wrapper deriving the identifier for a produced chunk.
func (c Chunk) ID(model string) string {
	return Identify(c.Source, c.StartLine, c.EndLine, c.Fingerprint, model)
}
