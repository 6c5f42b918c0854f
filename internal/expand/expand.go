// Package expand widens a chunk's line span back into its source document,
// either by a fixed number of context lines or to the full enclosing
// heading section.
package expand

import (
	"fmt"
	"os"
	"strings"

	"github.com/memsearch/memsearch/internal/chunk"
)

// DefaultContextLines is the context added on each side by Lines when the
// caller passes zero.
const DefaultContextLines = 5

// Result is an expanded span of a source document. Lines are 1-indexed and
// inclusive, matching chunk spans.
type Result struct {
	Source    string
	StartLine int
	EndLine   int
	Content   string
}

// Lines expands the span [startLine, endLine] by context lines on each
// side, clamped to the document.
func Lines(path string, startLine, endLine, context int) (Result, error) {
	if context <= 0 {
		context = DefaultContextLines
	}

	lines, err := readLines(path)
	if err != nil {
		return Result{}, err
	}
	if err := checkSpan(path, startLine, endLine, len(lines)); err != nil {
		return Result{}, err
	}

	start := max(1, startLine-context)
	end := min(len(lines), endLine+context)
	return spanResult(path, lines, start, end), nil
}

// Section expands the span to the whole heading section that contains it:
// from the nearest heading at or before startLine down to the line before
// the next heading of the same or higher level. A span above the first
// heading expands to the document preamble.
func Section(path string, startLine, endLine int) (Result, error) {
	lines, err := readLines(path)
	if err != nil {
		return Result{}, err
	}
	if err := checkSpan(path, startLine, endLine, len(lines)); err != nil {
		return Result{}, err
	}

	start := 1
	level := 0
	for i := startLine; i >= 1; i-- {
		if _, lvl, ok := chunk.ParseHeading(lines[i-1]); ok {
			start = i
			level = lvl
			break
		}
	}

	end := len(lines)
	for i := start + 1; i <= len(lines); i++ {
		_, lvl, ok := chunk.ParseHeading(lines[i-1])
		if !ok {
			continue
		}
		// In the preamble (level 0) any heading closes the section.
		if level == 0 || lvl <= level {
			end = i - 1
			break
		}
	}

	return spanResult(path, lines, start, end), nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func checkSpan(path string, start, end, total int) error {
	if start < 1 || end < start || end > total {
		return fmt.Errorf("line span %d-%d out of bounds for %s (%d lines)", start, end, path, total)
	}
	return nil
}

func spanResult(path string, lines []string, start, end int) Result {
	return Result{
		Source:    path,
		StartLine: start,
		EndLine:   end,
		Content:   strings.Join(lines[start-1:end], "\n"),
	}
}
