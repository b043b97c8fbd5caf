// Package dispatcher implements the multi-repository dispatcher: the
// outermost API surface that routes indexing, lookup, search, reference
// finding, and health checks across every active repository in the
// registry, fanning reads out and merging them deterministically.
package dispatcher

import (
	"time"

	"github.com/coderidge/codeindex/internal/store"
)

// IndexShard is the result of indexing one file: its file row, symbol
// rows, and the language/package/import facts the parser extracted.
type IndexShard struct {
	File     *store.File
	Symbols  []*store.Symbol
	Language string
	Package  string
	Imports  []string
}

// DirectoryStats is the counter set IndexDirectory returns.
type DirectoryStats struct {
	Total       int
	Indexed     int
	Ignored     int
	Failed      int
	Truncated   bool
	Cancelled   bool
	FailedPaths []string
}

// SymbolDef is a single lookup hit.
type SymbolDef struct {
	Symbol       string
	Kind         store.SymbolKind
	Language     string
	Signature    string
	Doc          string
	DefinedIn    string
	RepositoryID string
	Line         int
	LineEnd      int
}

// SearchOptions configures Search.
type SearchOptions struct {
	Semantic         bool
	Limit            int
	RepositoryFilter []string
	ContextLines     int
	Deadline         time.Time
	PerRepoHardCap   time.Duration
}

// DefaultContextLines is the default snippet context window either side of
// a match. Search reads neither it nor SearchOptions.ContextLines: snippets
// come from the full-text backend at a fixed token count.
const DefaultContextLines = 2

// DefaultPerRepoHardCap bounds any single repository's search, regardless
// of the caller's deadline, so one slow index can never hang a query.
const DefaultPerRepoHardCap = 300 * time.Millisecond

// SearchResult is one hit, annotated with its owning repository.
type SearchResult struct {
	Repository string
	File       string
	Line       int
	Snippet    string
	Score      float64
}

// SearchOutcome wraps the result list with truncation/cancellation markers
// so partial results are distinguishable from complete ones.
type SearchOutcome struct {
	Results   []SearchResult
	Truncated bool
	Cancelled bool
}

// Reference is one textual hit for FindReferences.
type Reference struct {
	Repository string
	File       string
	Line       int
	Snippet    string
}

// HealthReport is HealthCheck's result shape.
type HealthReport struct {
	Status       string
	IndexedRepos int
	TotalFiles   int
	Warnings     []string
}
