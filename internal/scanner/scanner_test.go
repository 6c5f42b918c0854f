package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func scanPaths(t *testing.T, opts Options) []string {
	t.Helper()
	files, err := New(opts).ScanAll(context.Background())
	require.NoError(t, err)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestScanner_FindsMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# A")
	writeFile(t, filepath.Join(dir, "notes", "b.markdown"), "# B")
	writeFile(t, filepath.Join(dir, "notes", "c.MD"), "# C")
	writeFile(t, filepath.Join(dir, "code.go"), "package main")
	writeFile(t, filepath.Join(dir, "readme.txt"), "not a note")

	paths := scanPaths(t, Options{Roots: []string{dir}})

	assert.Equal(t, []string{
		filepath.Join(dir, "a.md"),
		filepath.Join(dir, "notes", "b.markdown"),
		filepath.Join(dir, "notes", "c.MD"),
	}, paths)
}

func TestScanner_SkipsHiddenDirectoriesAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "visible.md"), "# V")
	writeFile(t, filepath.Join(dir, ".obsidian", "workspace.md"), "# hidden dir")
	writeFile(t, filepath.Join(dir, ".draft.md"), "# hidden file")

	paths := scanPaths(t, Options{Roots: []string{dir}})

	assert.Equal(t, []string{filepath.Join(dir, "visible.md")}, paths)
}

func TestScanner_SingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "single.md")
	writeFile(t, note, "# Single")

	paths := scanPaths(t, Options{Roots: []string{note}})
	assert.Equal(t, []string{note}, paths)
}

func TestScanner_MultipleRoots(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, filepath.Join(dirA, "a.md"), "# A")
	writeFile(t, filepath.Join(dirB, "b.md"), "# B")

	paths := scanPaths(t, Options{Roots: []string{dirA, dirB}})
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, filepath.Join(dirA, "a.md"))
	assert.Contains(t, paths, filepath.Join(dirB, "b.md"))
}

func TestScanner_ExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.md"), "# Keep")
	writeFile(t, filepath.Join(dir, "scratch-draft.md"), "# Drop")

	paths := scanPaths(t, Options{
		Roots:           []string{dir},
		ExcludePatterns: []string{"scratch-*"},
	})
	assert.Equal(t, []string{filepath.Join(dir, "keep.md")}, paths)
}

func TestScanner_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "small.md"), "# ok")
	writeFile(t, filepath.Join(dir, "big.md"), "# "+string(make([]byte, 100)))

	paths := scanPaths(t, Options{
		Roots:       []string{dir},
		MaxFileSize: 50,
	})
	assert.Equal(t, []string{filepath.Join(dir, "small.md")}, paths)
}

func TestScanner_MissingRootFails(t *testing.T) {
	_, err := New(Options{Roots: []string{"/no/such/dir"}}).Scan(context.Background())
	require.Error(t, err)
}

func TestScanner_FileMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# hello")

	files, err := New(Options{Roots: []string{dir}}).ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(7), files[0].Size)
	assert.False(t, files[0].ModTime.IsZero())
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("notes/a.md"))
	assert.True(t, IsMarkdown("a.MARKDOWN"))
	assert.False(t, IsMarkdown("a.mdx"))
	assert.False(t, IsMarkdown("a"))
}
