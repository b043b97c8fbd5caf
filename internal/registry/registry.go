// Package registry implements the repository registry: the persistent
// JSON document mapping repository id to {path, index_path, language
// stats, priority, active}. Writes are a read-modify-write cycle with an
// atomic write-then-rename, guarded by an advisory file lock so the
// registry file stays a single-writer resource across processes, not
// just goroutines.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/coderidge/codeindex/internal/store"
)

// Entry is one repository's registry row, matching the on-disk JSON
// shape field-for-field.
type Entry struct {
	RepositoryID  string         `json:"repository_id"`
	Name          string         `json:"name"`
	Path          string         `json:"path"`
	IndexPath     string         `json:"index_path"`
	LanguageStats map[string]int `json:"language_stats"`
	TotalFiles    int            `json:"total_files"`
	TotalSymbols  int            `json:"total_symbols"`
	IndexedAt     time.Time      `json:"indexed_at"`
	Active        bool           `json:"active"`
	Priority      int            `json:"priority"`
}

// ToRepository adapts a registry Entry to the storage engine's Repository
// type, the shape the store and dispatcher operate on.
func (e Entry) ToRepository() store.Repository {
	return store.Repository{
		ID:            e.RepositoryID,
		Path:          e.Path,
		Name:          e.Name,
		IndexPath:     e.IndexPath,
		LanguageStats: e.LanguageStats,
		TotalFiles:    e.TotalFiles,
		TotalSymbols:  e.TotalSymbols,
		IndexedAt:     e.IndexedAt,
		Active:        e.Active,
		Priority:      e.Priority,
	}
}

func fromRepository(r store.Repository) Entry {
	return Entry{
		RepositoryID:  r.ID,
		Name:          r.Name,
		Path:          r.Path,
		IndexPath:     r.IndexPath,
		LanguageStats: r.LanguageStats,
		TotalFiles:    r.TotalFiles,
		TotalSymbols:  r.TotalSymbols,
		IndexedAt:     r.IndexedAt,
		Active:        r.Active,
		Priority:      r.Priority,
	}
}

// document is the on-disk shape: a plain map keyed by repository id.
type document map[string]Entry

// Registry is a file-backed {repo_id -> Entry} map. Every mutating method
// takes the advisory file lock around a full read-modify-write-fsync
// cycle so concurrent CLI processes serialize on the registry file.
type Registry struct {
	path string
	lock *flock.Flock
}

// Open returns a Registry backed by the document at path. The file and
// its parent directory are created lazily on first write; Open itself
// does no I/O beyond preparing the lock handle.
func Open(path string) *Registry {
	return &Registry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Register adds or replaces the entry for repo.RepositoryID.
func (r *Registry) Register(entry Entry) error {
	return r.mutate(func(doc document) {
		doc[entry.RepositoryID] = entry
	})
}

// UpdateStats merges updated file/symbol counters and language stats into
// an existing entry. It is a no-op (not an error) if the repo id is
// unknown.
func (r *Registry) UpdateStats(repoID string, languageStats map[string]int, totalFiles, totalSymbols int, indexedAt time.Time) error {
	return r.mutate(func(doc document) {
		e, ok := doc[repoID]
		if !ok {
			return
		}
		e.LanguageStats = languageStats
		e.TotalFiles = totalFiles
		e.TotalSymbols = totalSymbols
		e.IndexedAt = indexedAt
		doc[repoID] = e
	})
}

// Deactivate marks a repository inactive so it is skipped by search
// unless explicitly addressed.
func (r *Registry) Deactivate(repoID string) error {
	return r.mutate(func(doc document) {
		if e, ok := doc[repoID]; ok {
			e.Active = false
			doc[repoID] = e
		}
	})
}

// Activate marks a repository active again.
func (r *Registry) Activate(repoID string) error {
	return r.mutate(func(doc document) {
		if e, ok := doc[repoID]; ok {
			e.Active = true
			doc[repoID] = e
		}
	})
}

// Remove deletes a repository's entry entirely. Only reachable through
// explicit user action.
func (r *Registry) Remove(repoID string) error {
	return r.mutate(func(doc document) {
		delete(doc, repoID)
	})
}

// Get returns a single entry by id.
func (r *Registry) Get(repoID string) (Entry, bool, error) {
	doc, err := r.read()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := doc[repoID]
	return e, ok, nil
}

// List returns every entry, optionally restricted to active ones, sorted
// by priority descending then repository id ascending, the order searches
// and lookups prefer.
func (r *Registry) List(activeOnly bool) ([]Entry, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(doc))
	for _, e := range doc {
		if activeOnly && !e.Active {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].RepositoryID < entries[j].RepositoryID
	})
	return entries, nil
}

// ResolveByPath finds the entry whose Path matches absPath exactly.
func (r *Registry) ResolveByPath(absPath string) (Entry, bool, error) {
	doc, err := r.read()
	if err != nil {
		return Entry{}, false, err
	}
	clean := filepath.Clean(absPath)
	for _, e := range doc {
		if filepath.Clean(e.Path) == clean {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// read loads the document, tolerating a missing file as an empty
// registry.
func (r *Registry) read() (document, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(data) == 0 {
		return document{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// mutate performs one locked read-modify-write-fsync cycle.
func (r *Registry) mutate(fn func(document)) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer r.lock.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	fn(doc)
	return r.write(doc)
}

// write persists doc with an atomic write-then-rename, with an explicit
// fsync of the temp file before rename so the write survives a crash
// mid-rename.
func (r *Registry) write(doc document) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	tmpPath := r.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open registry temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write registry temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync registry temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close registry temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("rename registry temp file: %w", err)
	}
	return nil
}

// EntryFromRepository builds a registry Entry from a store.Repository,
// exposed for callers (the dispatcher, the migration engine) that work in
// terms of store.Repository and need to persist it.
func EntryFromRepository(r store.Repository) Entry {
	return fromRepository(r)
}
