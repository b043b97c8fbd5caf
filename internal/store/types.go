// Package store implements the per-repository storage engine: a
// relational schema for repositories/files/symbols plus a pluggable BM25
// full-text backend and an optional HNSW vector store, all addressed by a
// single Engine per repository index file.
package store

import (
	"context"
	"fmt"
	"time"
)

// SymbolKind is the closed enum of program-entity kinds a Symbol may carry.
// Visibility/storage-class variants (private_method, static_property, ...)
// are represented as additional SymbolKind values built by WithVisibility,
// not as a separate type, so callers can always switch on a plain string.
type SymbolKind string

const (
	KindClass      SymbolKind = "class"
	KindInterface  SymbolKind = "interface"
	KindTrait      SymbolKind = "trait"
	KindStruct     SymbolKind = "struct"
	KindEnum       SymbolKind = "enum"
	KindFunction   SymbolKind = "function"
	KindMethod     SymbolKind = "method"
	KindField      SymbolKind = "field"
	KindProperty   SymbolKind = "property"
	KindConstant   SymbolKind = "constant"
	KindVariable   SymbolKind = "variable"
	KindType       SymbolKind = "type"
	KindModule     SymbolKind = "module"
	KindPackage    SymbolKind = "package"
	KindDependency SymbolKind = "dependency"
	KindPlugin     SymbolKind = "plugin"
	KindArtifact   SymbolKind = "artifact"
	KindAnnotation SymbolKind = "annotation"
	KindExtension  SymbolKind = "extension"

	// CSV-specific kinds.
	KindHeader    SymbolKind = "header"
	KindSchema    SymbolKind = "schema"
	KindStatistic SymbolKind = "statistic"
)

// WithVisibility folds a visibility or storage-class modifier into a kind
// string when the distinction is semantically material, e.g.
// WithVisibility(KindMethod, "private") -> "private_method".
func WithVisibility(kind SymbolKind, modifier string) SymbolKind {
	if modifier == "" {
		return kind
	}
	return SymbolKind(fmt.Sprintf("%s_%s", modifier, kind))
}

// kindPriority ranks symbol kinds for lookup_symbol and search-result
// ordering: classes/structs/interfaces first, then functions/methods,
// then fields/variables, everything else last.
func kindPriority(kind SymbolKind) int {
	switch kind {
	case KindClass, KindStruct, KindInterface, KindTrait, KindEnum:
		return 0
	case KindFunction, KindMethod, KindExtension:
		return 1
	case KindField, KindVariable, KindProperty, KindConstant:
		return 2
	default:
		return 3
	}
}

// Repository is the per-repository metadata row owned by the registry and
// mirrored (id, totals) inside the repository's own index file.
type Repository struct {
	ID            string
	Path          string
	Name          string
	IndexPath     string
	LanguageStats map[string]int
	TotalFiles    int
	TotalSymbols  int
	IndexedAt     time.Time
	Active        bool
	Priority      int
}

// File is one indexed source file, always owned by exactly the one
// repository whose index file it lives in; RepositoryID holds that
// repository's id.
type File struct {
	ID           int64
	RepositoryID string
	Path         string
	RelativePath string
	Language     string
	Size         int64
	ContentHash  string
	LastModified time.Time
	IndexedAt    time.Time
}

// Symbol is one extracted program entity, owned by its File.
type Symbol struct {
	ID            int64
	FileID        int64
	Name          string
	Kind          SymbolKind
	LineStart     int
	LineEnd       int
	ColumnStart   int
	ColumnEnd     int
	Signature     string
	Documentation string
	Modifiers     []string
	Metadata      map[string]string
}

// BM25Row is the derived full-text projection of a File, rebuilt whenever
// the file is re-indexed. Content must always be the file's literal text,
// never a hash or placeholder: a hash here silently produces zero matches
// on every search.
type BM25Row struct {
	FileID   int64
	FilePath string
	FileName string
	Content  string
	Language string
	Symbols  string // space-joined symbol names
	Imports  string // space-joined import names
	Comments string // concatenated doc comments
}

// BM25SearchResult is one hit from a BM25 query against bm25_content.
type BM25SearchResult struct {
	FileID   int64
	FilePath string
	Snippet  string
	Rank     float64 // ascending: smaller rank = more relevant
}

// IndexStats summarizes a BM25Index's current contents.
type IndexStats struct {
	DocumentCount int
}

// BM25Config carries stop-word and prefix-length settings. Neither
// BM25Index implementation reads it: the SQLite backend fixes its prefix
// indexes in its table definition, and the Bleve backend uses
// DefaultCodeStopWords directly.
type BM25Config struct {
	StopWords     []string
	PrefixLengths []int
}

// DefaultCodeStopWords is a small stop list of common English function
// words (a few, like "for", are also keywords), kept short so identifiers
// that happen to look like English words are not suppressed.
var DefaultCodeStopWords = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"of", "in", "on", "at", "to", "for", "and", "or", "but", "with",
}

// DefaultBM25Config returns the default tokenizer tuning: the code stop
// list and prefix indexes of length 2 and 3.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:     DefaultCodeStopWords,
		PrefixLengths: []int{2, 3},
	}
}

// BM25Index is the pluggable full-text backend behind bm25_content. Two
// implementations satisfy it: sqliteFTSBackend (default, shares the
// engine's own database connection) and BleveBM25Index (legacy,
// single-process, its own on-disk directory).
type BM25Index interface {
	Index(ctx context.Context, rows []*BM25Row) error
	Search(ctx context.Context, query string, limit int) ([]*BM25SearchResult, error)
	Delete(ctx context.Context, fileIDs []int64) error
	AllFileIDs(ctx context.Context) ([]int64, error)
	Stats() *IndexStats
	Close() error
}

// ErrDimensionMismatch is returned by VectorStore.Add when a vector's
// dimensionality doesn't match the store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorResult is one hit from a vector similarity search.
type VectorResult struct {
	ID       string
	Score    float32
	Distance float32
}

// VectorStoreConfig tunes the optional HNSW-backed semantic search path.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
	M          int
	EfSearch   int
}

// DefaultVectorStoreConfig returns sane defaults for a cosine-similarity
// HNSW graph.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore is the optional semantic-search backend. An Engine can carry
// one (WithVectorStore), but the dispatcher's search does not query it:
// every search runs against BM25.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Stats() *IndexStats
	Close() error
}
