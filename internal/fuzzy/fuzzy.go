// Package fuzzy implements an in-memory, suggestion-only index over symbol
// names. It is never the authoritative source of search results — the
// storage engine (internal/store) is — but gives callers a fast, no-I/O
// way to offer quick lookups while an index is warm. File contents
// registered with AddFile are counted by Stats but not searched.
package fuzzy

import (
	"sort"
	"strings"
	"sync"

	"github.com/coderidge/codeindex/internal/store"
)

// Match is one hit returned by Search.
type Match struct {
	File  string
	Line  int
	Name  string
	Score int
}

// symbolEntry is a registered symbol awaiting search.
type symbolEntry struct {
	name     string
	file     string
	line     int
	metadata map[string]string
}

// Index is an in-memory, reader/writer-locked substring index. Zero value
// is not usable; construct with New.
type Index struct {
	mu      sync.RWMutex
	symbols []symbolEntry
	files   map[string]string // path -> content; counted by Stats, not searched
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		files: make(map[string]string),
	}
}

// AddFile registers a file's content. Search does not scan file contents;
// a registered file only counts toward Stats.Files.
func (idx *Index) AddFile(path, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files[path] = content
}

// AddSymbol registers a symbol name at a location.
func (idx *Index) AddSymbol(name, file string, line int, metadata map[string]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.symbols = append(idx.symbols, symbolEntry{
		name:     name,
		file:     file,
		line:     line,
		metadata: metadata,
	})
}

// Stats describes the current contents of the index.
type Stats struct {
	Files   int
	Symbols int
}

// Stats returns counts of registered files and symbols.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{Files: len(idx.files), Symbols: len(idx.symbols)}
}

// The rank constants rank how a query matched a candidate name: lower is
// better.
const (
	rankWholeWord = 0
	rankPrefix    = 1
	rankSubstring = 2
)

// Search performs a case-insensitive substring match over registered
// symbol names, scored whole-word > prefix > substring, tiebroken by
// shorter name then lower line number. limit <= 0 means unbounded.
func (idx *Index) Search(query string, limit int) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	type candidate struct {
		entry symbolEntry
		rank  int
	}

	var candidates []candidate
	for _, s := range idx.symbols {
		lname := strings.ToLower(s.name)
		switch {
		case lname == q:
			candidates = append(candidates, candidate{s, rankWholeWord})
		case strings.HasPrefix(lname, q):
			candidates = append(candidates, candidate{s, rankPrefix})
		case strings.Contains(lname, q):
			candidates = append(candidates, candidate{s, rankSubstring})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if len(a.entry.name) != len(b.entry.name) {
			return len(a.entry.name) < len(b.entry.name)
		}
		return a.entry.line < b.entry.line
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := 100
		switch c.rank {
		case rankPrefix:
			score = 66
		case rankSubstring:
			score = 33
		}
		results = append(results, Match{
			File:  c.entry.file,
			Line:  c.entry.line,
			Name:  c.entry.name,
			Score: score,
		})
	}
	return results
}

// IndexSymbols is a convenience that tokenizes each symbol's name with
// store.SplitCodeToken, the camelCase/snake_case splitter the Bleve BM25
// analyzer uses, registering both the full name and its sub-tokens so a
// query for "user" finds "getUserById".
func (idx *Index) IndexSymbols(file string, syms []SymbolRef) {
	for _, s := range syms {
		idx.AddSymbol(s.Name, file, s.Line, nil)
		for _, tok := range store.SplitCodeToken(s.Name) {
			if tok != s.Name {
				idx.AddSymbol(tok, file, s.Line, map[string]string{"parent": s.Name})
			}
		}
	}
}

// SymbolRef is the minimal shape IndexSymbols needs from a caller's symbol
// type, avoiding a hard dependency on internal/lang's richer Symbol type.
type SymbolRef struct {
	Name string
	Line int
}
