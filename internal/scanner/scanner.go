// Package scanner implements the directory walker the dispatcher's
// directory indexing consumes: it yields (path, metadata) entries and
// classifies each one. The walker itself never parses or indexes
// anything; the dispatcher decides what to do with each entry.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coderidge/codeindex/internal/gitignore"
)

// Classification tags why a walked entry either is or isn't a candidate
// for indexing.
type Classification string

const (
	Indexable      Classification = "indexable"
	SkipSize       Classification = "skip:size"
	SkipBinary     Classification = "skip:binary"
	SkipIgnoredDir Classification = "skip:ignored_dir"
	ErrorIO        Classification = "error:io"
)

// DefaultMaxFileSize is the default size threshold above which files are
// skipped during directory indexing.
const DefaultMaxFileSize int64 = 1 << 20 // 1 MiB

// binaryProbeBytes is how much of a file's head is inspected for the
// null-byte binary heuristic.
const binaryProbeBytes = 8 * 1024

// DefaultIgnoreDirs is the directory-name ignore set: VCS state,
// dependency trees, caches, and common build-output directories.
var DefaultIgnoreDirs = []string{
	".git", "node_modules", "vendor", "__pycache__",
	"dist", "build", "target", "bin", ".next", ".venv",
}

// Entry is one classified filesystem entry yielded by Walk. Size is set
// for Indexable, SkipSize and SkipBinary entries; callers should still
// branch on Classification rather than assuming Err is nil.
type Entry struct {
	Path           string // relative to Options.RootDir
	AbsPath        string
	Size           int64
	Classification Classification
	Err            error
}

// Options configures a Walk.
type Options struct {
	RootDir          string
	IgnoreDirs       []string // defaults to DefaultIgnoreDirs when nil
	MaxFileSize      int64    // defaults to DefaultMaxFileSize when <= 0
	RespectGitignore bool
	FollowSymlinks   bool
}

// Scanner walks project directories, caching compiled .gitignore matchers
// per directory so repeated scans of the same tree don't re-parse them.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

const gitignoreCacheSize = 1000

// New creates a Scanner with a bounded gitignore-matcher cache.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Walk discovers every entry under opts.RootDir in deterministic (sorted
// path) order and streams each as a classified Entry on
// the returned channel. The channel closes when the walk completes, the
// context is cancelled, or an unrecoverable error occurs. Walk itself
// never blocks past ctx cancellation for longer than the in-flight
// filesystem call.
func (s *Scanner) Walk(ctx context.Context, opts Options) (<-chan Entry, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	out := make(chan Entry, 64)
	go func() {
		defer close(out)
		s.walk(ctx, absRoot, ignoreDirs, maxSize, opts, out)
	}()
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, ignoreDirs []string, maxSize int64, opts Options, out chan<- Entry) {
	var gi *gitignore.Matcher
	if opts.RespectGitignore {
		gi = s.loadGitignore(absRoot)
	}

	// filepath.WalkDir already visits entries within a directory in
	// lexical order, and directories depth-first, which keeps file_id
	// assignment reproducible across rescans.
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if walkErr != nil {
			out <- Entry{Path: relPath, AbsPath: path, Classification: ErrorIO, Err: walkErr}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if isIgnoredDir(d.Name(), ignoreDirs) {
				out <- Entry{Path: relPath, AbsPath: path, Classification: SkipIgnoredDir}
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		if gi != nil && gi.Match(relPath, false) {
			out <- Entry{Path: relPath, AbsPath: path, Classification: SkipIgnoredDir}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			out <- Entry{Path: relPath, AbsPath: path, Classification: ErrorIO, Err: err}
			return nil
		}

		if fi.Size() > maxSize {
			out <- Entry{Path: relPath, AbsPath: path, Size: fi.Size(), Classification: SkipSize}
			return nil
		}

		if looksBinary(path) {
			out <- Entry{Path: relPath, AbsPath: path, Size: fi.Size(), Classification: SkipBinary}
			return nil
		}

		select {
		case out <- Entry{Path: relPath, AbsPath: path, Size: fi.Size(), Classification: Indexable}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		out <- Entry{Path: "", AbsPath: absRoot, Classification: ErrorIO, Err: err}
	}
}

func (s *Scanner) loadGitignore(absRoot string) *gitignore.Matcher {
	s.cacheMu.RLock()
	if cached, ok := s.gitignoreCache.Get(absRoot); ok {
		s.cacheMu.RUnlock()
		return cached
	}
	s.cacheMu.RUnlock()

	m := gitignore.New()
	_ = m.AddFromFile(filepath.Join(absRoot, ".gitignore"), "")

	s.cacheMu.Lock()
	s.gitignoreCache.Add(absRoot, m)
	s.cacheMu.Unlock()
	return m
}

func isIgnoredDir(name string, ignoreDirs []string) bool {
	for _, d := range ignoreDirs {
		if name == d {
			return true
		}
	}
	return false
}

// looksBinary applies the null-byte heuristic: a file is binary if its
// first 8 KiB contain a NUL byte.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, binaryProbeBytes)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// IsIgnoredDirName reports whether name is in the default ignore set,
// exposed for callers that want to pre-filter without a full Walk.
func IsIgnoredDirName(name string) bool {
	return isIgnoredDir(name, DefaultIgnoreDirs)
}
