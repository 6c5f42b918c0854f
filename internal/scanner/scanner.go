// Package scanner discovers markdown note files under one or more roots.
// Hidden directories and files are skipped, as are files above the size
// limit.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMaxFileSize is the largest note the scanner will report (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// markdownExtensions are the file extensions treated as notes.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// FileInfo contains metadata about a discovered note file.
type FileInfo struct {
	Path    string    // absolute path
	Size    int64     // file size in bytes
	ModTime time.Time // last modification time
}

// Options configures the scanner.
type Options struct {
	// Roots are the files or directories to scan. A root that is itself a
	// markdown file is reported directly.
	Roots []string

	// ExcludePatterns are glob patterns matched against the base name.
	ExcludePatterns []string

	// MaxFileSize is the maximum file size in bytes (0 = 10MB default).
	MaxFileSize int64
}

// Result is returned from the scanner channel. Exactly one of File and Err
// is set.
type Result struct {
	File *FileInfo
	Err  error
}

// Scanner walks note roots and streams the markdown files it finds.
type Scanner struct {
	opts Options
}

// New creates a scanner for the given options.
func New(opts Options) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Scanner{opts: opts}
}

// Scan streams discovered files on the returned channel. The channel is
// closed when every root has been walked or the context is cancelled.
// Unreadable entries are reported as Result.Err and do not stop the walk.
func (s *Scanner) Scan(ctx context.Context) (<-chan Result, error) {
	roots := make([]string, 0, len(s.opts.Roots))
	for _, root := range s.opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("failed to stat root: %w", err)
		}
		roots = append(roots, abs)
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		for _, root := range roots {
			s.walkRoot(ctx, root, results)
		}
	}()
	return results, nil
}

// ScanAll collects every discovered file into a slice sorted by path.
// The first walk error encountered is returned after the walk completes.
func (s *Scanner) ScanAll(ctx context.Context) ([]FileInfo, error) {
	ch, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	var firstErr error
	for res := range ch {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		files = append(files, *res.File)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, firstErr
}

func (s *Scanner) walkRoot(ctx context.Context, root string, results chan<- Result) {
	info, err := os.Stat(root)
	if err != nil {
		s.emit(ctx, results, Result{Err: err})
		return
	}

	if !info.IsDir() {
		if fi, ok := s.accept(root, info.Size(), info.ModTime()); ok {
			s.emit(ctx, results, Result{File: fi})
		}
		return
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.emit(ctx, results, Result{Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		fsInfo, err := d.Info()
		if err != nil {
			s.emit(ctx, results, Result{Err: err})
			return nil
		}
		if fi, ok := s.accept(path, fsInfo.Size(), fsInfo.ModTime()); ok {
			s.emit(ctx, results, Result{File: fi})
		}
		return nil
	})
	if err != nil && err != ctx.Err() {
		s.emit(ctx, results, Result{Err: err})
	}
}

// accept decides whether a file belongs in the index.
func (s *Scanner) accept(path string, size int64, modTime time.Time) (*FileInfo, bool) {
	if !IsMarkdown(path) {
		return nil, false
	}
	if size > s.opts.MaxFileSize {
		slog.Debug("skipping oversized file",
			slog.String("path", path),
			slog.Int64("size", size))
		return nil, false
	}
	base := filepath.Base(path)
	for _, pattern := range s.opts.ExcludePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return nil, false
		}
	}
	return &FileInfo{Path: path, Size: size, ModTime: modTime}, true
}

func (s *Scanner) emit(ctx context.Context, results chan<- Result, res Result) {
	select {
	case results <- res:
	case <-ctx.Done():
	}
}

// IsMarkdown reports whether the path has a markdown extension.
func IsMarkdown(path string) bool {
	return markdownExtensions[strings.ToLower(filepath.Ext(path))]
}
