package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, opts Options) []Entry {
	t.Helper()
	s, err := New()
	require.NoError(t, err)

	ch, err := s.Walk(context.Background(), opts)
	require.NoError(t, err)

	var entries []Entry
	for e := range ch {
		entries = append(entries, e)
	}
	return entries
}

func byPath(entries []Entry, path string) (Entry, bool) {
	for _, e := range entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

func TestWalkClassifiesIndexableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	entries := collect(t, Options{RootDir: dir})

	e, ok := byPath(entries, "main.go")
	require.True(t, ok)
	require.Equal(t, Indexable, e.Classification)
}

func TestWalkSkipsIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x.js"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.js"), []byte("1"), 0o644))

	entries := collect(t, Options{RootDir: dir})

	_, skippedNested := byPath(entries, filepath.Join("node_modules", "x.js"))
	require.False(t, skippedNested, "files under an ignored directory should never be yielded")

	dirEntry, ok := byPath(entries, "node_modules")
	require.True(t, ok)
	require.Equal(t, SkipIgnoredDir, dirEntry.Classification)

	keep, ok := byPath(entries, "keep.js")
	require.True(t, ok)
	require.Equal(t, Indexable, keep.Classification)
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), big, 0o644))

	entries := collect(t, Options{RootDir: dir, MaxFileSize: 10})

	e, ok := byPath(entries, "big.txt")
	require.True(t, ok)
	require.Equal(t, SkipSize, e.Classification)
}

func TestWalkSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte("abc"), 0x00, 'd', 'e', 'f')
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin.dat"), content, 0o644))

	entries := collect(t, Options{RootDir: dir})

	e, ok := byPath(entries, "bin.dat")
	require.True(t, ok)
	require.Equal(t, SkipBinary, e.Classification)
}

func TestWalkRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte("log"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.go"), []byte("package main"), 0o644))

	entries := collect(t, Options{RootDir: dir, RespectGitignore: true})

	ignored, ok := byPath(entries, "app.log")
	require.True(t, ok)
	require.Equal(t, SkipIgnoredDir, ignored.Classification)

	kept, ok := byPath(entries, "app.go")
	require.True(t, ok)
	require.Equal(t, Indexable, kept.Classification)
}

func TestWalkDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.go", "a.go", "b.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("package main"), 0o644))
	}

	first := collect(t, Options{RootDir: dir})
	second := collect(t, Options{RootDir: dir})

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Path, second[i].Path)
	}
}

func TestWalkCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i%26))+".go"), []byte("package main"), 0o644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New()
	require.NoError(t, err)
	ch, err := s.Walk(ctx, Options{RootDir: dir})
	require.NoError(t, err)

	for range ch {
		// drain; Walk must terminate promptly even though ctx is already done.
	}
}

func TestIsIgnoredDirName(t *testing.T) {
	require.True(t, IsIgnoredDirName(".git"))
	require.True(t, IsIgnoredDirName("node_modules"))
	require.False(t, IsIgnoredDirName("src"))
}
